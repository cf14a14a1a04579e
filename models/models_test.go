package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() *Event {
	return &Event{
		Title:       "GopherCon",
		Description: "Talks about Go",
		Category:    CategoryConference,
		Date:        time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC),
		Time:        "09:00 AM",
		Location:    "Berlin",
		Capacity:    10,
	}
}

func TestContactValidate(t *testing.T) {
	require.NoError(t, Contact{Name: "Ann", Email: "ann@example.com", Phone: "555"}.Validate())

	err := Contact{Name: "", Email: "not-an-email", Phone: ""}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "malformed")
	assert.Contains(t, err.Error(), "phone is required")
}

func TestEventValidate(t *testing.T) {
	require.NoError(t, validEvent().Validate())

	cases := map[string]func(e *Event){
		"missing title":    func(e *Event) { e.Title = "" },
		"zero capacity":    func(e *Event) { e.Capacity = 0 },
		"unknown category": func(e *Event) { e.Category = "party" },
		"missing date":     func(e *Event) { e.Date = time.Time{} },
		"unknown status":   func(e *Event) { e.Status = "archived" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			e := validEvent()
			mutate(e)
			assert.ErrorIs(t, e.Validate(), ErrInvalidInput)
		})
	}
}

func TestEventPatchApply(t *testing.T) {
	e := validEvent()
	EventPatch{Title: "GopherCon EU", Capacity: 20}.Apply(e)

	assert.Equal(t, "GopherCon EU", e.Title)
	assert.Equal(t, 20, e.Capacity)
	assert.Equal(t, "Berlin", e.Location)
	assert.ErrorIs(t, EventPatch{Status: "gone"}.Validate(), ErrInvalidInput)
}

func TestSpotsLeft(t *testing.T) {
	e := &Event{Capacity: 2, RegistrationCount: 1}
	assert.Equal(t, 1, e.SpotsLeft())
	e.RegistrationCount = 2
	assert.Equal(t, 0, e.SpotsLeft())
}

func TestValidateSignup(t *testing.T) {
	require.NoError(t, ValidateSignup("Ann", "ann@example.com", "secret1"))
	assert.ErrorIs(t, ValidateSignup("", "ann@example.com", "secret1"), ErrInvalidInput)
	assert.ErrorIs(t, ValidateSignup("Ann", "ann@example.com", "abc"), ErrInvalidInput)
}
