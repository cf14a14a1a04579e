package service

import (
	"context"

	"eventhub/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type EventStore interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error)
	UpdateEvent(ctx context.Context, id, organizerID string, p models.EventPatch) (*models.Event, error)
	DeleteEvent(ctx context.Context, id, organizerID string) error
}

// RegistrationStore performs each mutation as one atomic unit: the
// registration row and the event's registration_count change together or not
// at all.
type RegistrationStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	RegisterForEvent(ctx context.Context, r *models.Registration) error
	Unregister(ctx context.Context, registrationID, requesterID string) (*models.Registration, error)
	ListRegistrationsByUser(ctx context.Context, userID string) ([]models.Registration, error)
	ListRegistrationsByEvent(ctx context.Context, eventID string) ([]models.Registration, error)
}

// Store is everything a backend provides.
type Store interface {
	UserStore
	EventStore
	RegistrationStore
	CountRegistrations(ctx context.Context, eventID string) (int, error)
	ReconcileCounts(ctx context.Context) (int64, error)
	Migrate() error
	Close() error
}

// Publisher delivers notifications after a change has committed.
type Publisher interface {
	Publish(ctx context.Context, key string, v any) error
}
