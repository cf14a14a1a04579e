package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"eventhub/models"
)

const (
	KeyRegistrationCreated   = "registration.created"
	KeyRegistrationCancelled = "registration.cancelled"
)

// RegistrationNotice is published after a registration is created or cancelled.
type RegistrationNotice struct {
	RegistrationID    string    `json:"registrationId"`
	EventID           string    `json:"eventId"`
	UserID            string    `json:"userId"`
	RegistrationCount int       `json:"registrationCount"`
	At                time.Time `json:"at"`
}

// RegistrationService is the only writer of registrations and of the
// registration count they drive.
type RegistrationService struct {
	store  RegistrationStore
	pub    Publisher
	log    *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewRegistrationService(store RegistrationStore, pub Publisher, log *zap.Logger) *RegistrationService {
	return &RegistrationService{
		store:  store,
		pub:    pub,
		log:    log,
		tracer: otel.Tracer("eventhub/service"),
		now:    time.Now,
	}
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Register books a seat at eventID for userID. It fails with ErrInvalidInput,
// ErrNotFound, ErrAlreadyRegistered or ErrCapacityExceeded and leaves no trace
// when it does.
func (s *RegistrationService) Register(ctx context.Context, userID, eventID string, c models.Contact) (_ *models.Registration, err error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.Register",
		trace.WithAttributes(attribute.String("event.id", eventID), attribute.String("user.id", userID)))
	defer func() { finish(span, err) }()

	if strings.TrimSpace(eventID) == "" {
		return nil, fmt.Errorf("%w: eventId is required", models.ErrInvalidInput)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	reg := &models.Registration{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventID:   eventID,
		Name:      strings.TrimSpace(c.Name),
		Email:     strings.TrimSpace(c.Email),
		Phone:     strings.TrimSpace(c.Phone),
		CreatedAt: s.now().UTC(),
	}

	if err := s.store.RegisterForEvent(ctx, reg); err != nil {
		return nil, err
	}

	count := 0
	if reg.Event != nil {
		count = reg.Event.RegistrationCount
	}
	span.SetAttributes(attribute.Int("event.registration_count", count))
	s.notify(ctx, KeyRegistrationCreated, reg, count)

	return reg, nil
}

// Unregister cancels a registration owned by requesterID and frees its seat.
func (s *RegistrationService) Unregister(ctx context.Context, registrationID, requesterID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.Unregister",
		trace.WithAttributes(attribute.String("registration.id", registrationID), attribute.String("user.id", requesterID)))
	defer func() { finish(span, err) }()

	reg, err := s.store.Unregister(ctx, registrationID, requesterID)
	if err != nil {
		return err
	}

	count := 0
	if reg.Event != nil {
		count = reg.Event.RegistrationCount
	}
	s.notify(ctx, KeyRegistrationCancelled, reg, count)

	return nil
}

// ListForUser returns the user's registrations, newest first.
func (s *RegistrationService) ListForUser(ctx context.Context, userID string) (_ []models.Registration, err error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.ListForUser",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer func() { finish(span, err) }()

	return s.store.ListRegistrationsByUser(ctx, userID)
}

// ListForEvent returns an event's registrations, newest first. Only the
// organizer may see them.
func (s *RegistrationService) ListForEvent(ctx context.Context, eventID, requesterID string) (_ []models.Registration, err error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.ListForEvent",
		trace.WithAttributes(attribute.String("event.id", eventID), attribute.String("user.id", requesterID)))
	defer func() { finish(span, err) }()

	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.OrganizerID != requesterID {
		return nil, fmt.Errorf("registrations of event %s: %w", eventID, models.ErrForbidden)
	}

	return s.store.ListRegistrationsByEvent(ctx, eventID)
}

func (s *RegistrationService) notify(ctx context.Context, key string, reg *models.Registration, count int) {
	s.log.Info(key,
		zap.String("registration_id", reg.ID),
		zap.String("event_id", reg.EventID),
		zap.String("user_id", reg.UserID),
		zap.Int("registration_count", count),
	)

	if s.pub == nil {
		return
	}

	notice := RegistrationNotice{
		RegistrationID:    reg.ID,
		EventID:           reg.EventID,
		UserID:            reg.UserID,
		RegistrationCount: count,
		At:                s.now().UTC(),
	}
	if err := s.pub.Publish(ctx, key, notice); err != nil {
		s.log.Warn("failed to publish notification", zap.String("key", key), zap.Error(err))
	}
}
