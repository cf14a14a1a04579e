// Package handlers is the JSON HTTP surface of the service.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"eventhub/auth"
	"eventhub/models"
	"eventhub/service"
)

type Handlers struct {
	Auth          *service.AuthService
	Events        *service.EventService
	Registrations *service.RegistrationService
	Log           *zap.Logger
}

type message struct {
	Message string `json:"message"`
}

// SendJSON is a helper for sending JSON responses
func SendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// StatusFor maps an error from the services to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrAlreadyRegistered),
		errors.Is(err, models.ErrCapacityExceeded),
		errors.Is(err, models.ErrEmailTaken):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// messageFor is the client-facing text for err. subject names what a
// NotFound refers to. Only validation errors carry their own detail.
func messageFor(err error, subject string) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return subject + " not found"
	case errors.Is(err, models.ErrForbidden):
		return "Not authorized"
	case errors.Is(err, models.ErrAlreadyRegistered):
		return "You are already registered for this event"
	case errors.Is(err, models.ErrCapacityExceeded):
		return "Event is at full capacity"
	case errors.Is(err, models.ErrEmailTaken):
		return "Email already registered"
	case errors.Is(err, models.ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, models.ErrInvalidInput):
		return err.Error()
	default:
		return "Internal Server Error"
	}
}

func (h *Handlers) sendError(w http.ResponseWriter, r *http.Request, err error, subject string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	SendJSON(w, status, message{messageFor(err, subject)})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		SendJSON(w, http.StatusBadRequest, message{"Invalid JSON body"})
		return false
	}
	return true
}

// userID returns the caller set by the authentication middleware.
func userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}
