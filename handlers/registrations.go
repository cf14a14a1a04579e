package handlers

import (
	"net/http"

	"eventhub/models"
)

type registerRequest struct {
	EventID string `json:"eventId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

type registrationResponse struct {
	Message      string               `json:"message"`
	Registration *models.Registration `json:"registration"`
}

type registrationsResponse struct {
	Registrations []models.Registration `json:"registrations"`
}

// HandleRegister handles POST /api/registrations
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	reg, err := h.Registrations.Register(r.Context(), userID(r), req.EventID, models.Contact{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		h.sendError(w, r, err, "Event")
		return
	}

	SendJSON(w, http.StatusCreated, registrationResponse{
		Message:      "Successfully registered for event",
		Registration: reg,
	})
}

// HandleListMine handles GET /api/registrations
func (h *Handlers) HandleListMine(w http.ResponseWriter, r *http.Request) {
	regs, err := h.Registrations.ListForUser(r.Context(), userID(r))
	if err != nil {
		h.sendError(w, r, err, "User")
		return
	}

	if regs == nil {
		regs = []models.Registration{}
	}
	SendJSON(w, http.StatusOK, registrationsResponse{regs})
}

// HandleUnregister handles DELETE /api/registrations/{id}
func (h *Handlers) HandleUnregister(w http.ResponseWriter, r *http.Request) {
	if err := h.Registrations.Unregister(r.Context(), r.PathValue("id"), userID(r)); err != nil {
		h.sendError(w, r, err, "Registration")
		return
	}

	SendJSON(w, http.StatusOK, message{"Registration cancelled successfully"})
}

// HandleListForEvent handles GET /api/registrations/event/{eventId}
func (h *Handlers) HandleListForEvent(w http.ResponseWriter, r *http.Request) {
	regs, err := h.Registrations.ListForEvent(r.Context(), r.PathValue("eventId"), userID(r))
	if err != nil {
		h.sendError(w, r, err, "Event")
		return
	}

	if regs == nil {
		regs = []models.Registration{}
	}
	SendJSON(w, http.StatusOK, registrationsResponse{regs})
}
