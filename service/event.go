package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"eventhub/models"
)

// EventService manages event records. It never changes registration counts.
type EventService struct {
	store  EventStore
	tracer trace.Tracer
	now    func() time.Time
}

func NewEventService(store EventStore) *EventService {
	return &EventService{
		store:  store,
		tracer: otel.Tracer("eventhub/service"),
		now:    time.Now,
	}
}

// Create stores a new event organized by organizerID.
func (s *EventService) Create(ctx context.Context, organizerID string, e *models.Event) (_ *models.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "EventService.Create",
		trace.WithAttributes(attribute.String("user.id", organizerID)))
	defer func() { finish(span, err) }()

	if strings.TrimSpace(e.Image) == "" {
		e.Image = models.DefaultImage
	}
	if e.Status == "" {
		e.Status = models.StatusPublished
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e.ID = uuid.NewString()
	e.OrganizerID = organizerID
	e.RegistrationCount = 0
	e.CreatedAt = now
	e.UpdatedAt = now

	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, err
	}

	return s.store.GetEvent(ctx, e.ID)
}

func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// List returns events newest first. A category of "all" matches everything.
func (s *EventService) List(ctx context.Context, f models.EventFilter) (_ []models.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "EventService.List")
	defer func() { finish(span, err) }()

	if f.Category == "all" {
		f.Category = ""
	}
	return s.store.ListEvents(ctx, f)
}

// Update changes an event. Only its organizer may do so.
func (s *EventService) Update(ctx context.Context, id, requesterID string, p models.EventPatch) (_ *models.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "EventService.Update",
		trace.WithAttributes(attribute.String("event.id", id), attribute.String("user.id", requesterID)))
	defer func() { finish(span, err) }()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.store.UpdateEvent(ctx, id, requesterID, p)
}

// Delete removes an event and its registrations. Only its organizer may do so.
func (s *EventService) Delete(ctx context.Context, id, requesterID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "EventService.Delete",
		trace.WithAttributes(attribute.String("event.id", id), attribute.String("user.id", requesterID)))
	defer func() { finish(span, err) }()

	return s.store.DeleteEvent(ctx, id, requesterID)
}
