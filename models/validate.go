package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mcnijman/go-emailaddress"
	"go.uber.org/multierr"
)

func required(errs error, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return multierr.Append(errs, fmt.Errorf("%s is required", field))
	}
	return errs
}

func checkEmail(errs error, value string) error {
	if strings.TrimSpace(value) == "" {
		return multierr.Append(errs, errors.New("email is required"))
	}
	if _, err := emailaddress.Parse(strings.TrimSpace(value)); err != nil {
		return multierr.Append(errs, fmt.Errorf("email %q is malformed", value))
	}
	return errs
}

func invalid(errs error) error {
	if errs == nil {
		return nil
	}
	return multierr.Append(ErrInvalidInput, errs)
}

// Validate reports every missing or malformed contact field.
func (c Contact) Validate() error {
	var errs error
	errs = required(errs, "name", c.Name)
	errs = checkEmail(errs, c.Email)
	errs = required(errs, "phone", c.Phone)
	return invalid(errs)
}

// Validate checks an event before it is created.
func (e *Event) Validate() error {
	var errs error
	errs = required(errs, "title", e.Title)
	errs = required(errs, "description", e.Description)
	errs = required(errs, "time", e.Time)
	errs = required(errs, "location", e.Location)
	if e.Category == "" {
		errs = multierr.Append(errs, errors.New("category is required"))
	} else if !e.Category.Valid() {
		errs = multierr.Append(errs, fmt.Errorf("unknown category %q", e.Category))
	}
	if e.Date.IsZero() {
		errs = multierr.Append(errs, errors.New("date is required"))
	}
	if e.Capacity < 1 {
		errs = multierr.Append(errs, errors.New("capacity must be at least 1"))
	}
	if e.Status != "" && !e.Status.Valid() {
		errs = multierr.Append(errs, fmt.Errorf("unknown status %q", e.Status))
	}
	return invalid(errs)
}

// Validate checks the fields a patch sets.
func (p EventPatch) Validate() error {
	var errs error
	if p.Category != "" && !p.Category.Valid() {
		errs = multierr.Append(errs, fmt.Errorf("unknown category %q", p.Category))
	}
	if p.Status != "" && !p.Status.Valid() {
		errs = multierr.Append(errs, fmt.Errorf("unknown status %q", p.Status))
	}
	if p.Capacity < 0 {
		errs = multierr.Append(errs, errors.New("capacity must be at least 1"))
	}
	return invalid(errs)
}

// Apply copies the set fields of p onto e.
func (p EventPatch) Apply(e *Event) {
	if p.Title != "" {
		e.Title = p.Title
	}
	if p.Description != "" {
		e.Description = p.Description
	}
	if p.Category != "" {
		e.Category = p.Category
	}
	if !p.Date.IsZero() {
		e.Date = p.Date
	}
	if p.Time != "" {
		e.Time = p.Time
	}
	if p.Location != "" {
		e.Location = p.Location
	}
	if p.Image != "" {
		e.Image = p.Image
	}
	if p.Capacity > 0 {
		e.Capacity = p.Capacity
	}
	if p.Status != "" {
		e.Status = p.Status
	}
}

// ValidateSignup checks the fields of a new account.
func ValidateSignup(name, email, password string) error {
	var errs error
	errs = required(errs, "name", name)
	errs = checkEmail(errs, email)
	if len(password) < 6 {
		errs = multierr.Append(errs, errors.New("password must be at least 6 characters"))
	}
	return invalid(errs)
}
