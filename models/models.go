package models

import "time"

// DefaultImage is used when an event is created without an image.
const DefaultImage = "https://via.placeholder.com/500x300"

// Category classifies an event.
type Category string

const (
	CategoryConference Category = "conference"
	CategoryWorkshop   Category = "workshop"
	CategorySeminar    Category = "seminar"
	CategoryNetworking Category = "networking"
	CategoryMeetup     Category = "meetup"
	CategoryWebinar    Category = "webinar"
	CategoryTraining   Category = "training"
	CategoryConcert    Category = "concert"
)

// Categories lists every accepted category.
var Categories = []Category{
	CategoryConference, CategoryWorkshop, CategorySeminar, CategoryNetworking,
	CategoryMeetup, CategoryWebinar, CategoryTraining, CategoryConcert,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an event.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// User is an account. PasswordHash never leaves the process.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserSummary is the public view of a user attached to events and registrations.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Event represents an event that users can register for.
type Event struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	Category          Category     `json:"category"`
	Date              time.Time    `json:"date"`
	Time              string       `json:"time"`
	Location          string       `json:"location"`
	Image             string       `json:"image"`
	Capacity          int          `json:"capacity"`
	RegistrationCount int          `json:"registrationCount"`
	OrganizerID       string       `json:"organizerId"`
	Organizer         *UserSummary `json:"organizer,omitempty"`
	Status            Status       `json:"status"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// SpotsLeft is the number of registrations the event can still accept.
func (e *Event) SpotsLeft() int {
	if n := e.Capacity - e.RegistrationCount; n > 0 {
		return n
	}
	return 0
}

// EventPatch carries the fields of an update. Zero values are left untouched.
type EventPatch struct {
	Title       string
	Description string
	Category    Category
	Date        time.Time
	Time        string
	Location    string
	Image       string
	Capacity    int
	Status      Status
}

// EventFilter narrows ListEvents. An empty Category or "all" matches everything.
type EventFilter struct {
	Category Category
	Search   string
	Limit    int
	Offset   int
}

// Contact holds the details a registrant submits with a registration.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Registration represents a user's booking for an event.
type Registration struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	EventID   string       `json:"eventId"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone"`
	CreatedAt time.Time    `json:"createdAt"`
	Event     *Event       `json:"event,omitempty"`
	User      *UserSummary `json:"user,omitempty"`
}
