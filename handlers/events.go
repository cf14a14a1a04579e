package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"eventhub/models"
)

// eventRequest is the body of POST and PUT /api/events. Empty fields are left
// untouched by PUT.
type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Image       string `json:"image"`
	Capacity    int    `json:"capacity"`
	Status      string `json:"status"`
}

// parseDate accepts a full RFC 3339 timestamp or a plain YYYY-MM-DD day.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD or RFC 3339", models.ErrInvalidInput, s)
	}
	return t, nil
}

type eventResponse struct {
	Message string        `json:"message,omitempty"`
	Event   *models.Event `json:"event"`
}

// HandleListEvents handles GET /api/events
func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.EventFilter{
		Category: models.Category(q.Get("category")),
		Search:   q.Get("search"),
	}

	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			SendJSON(w, http.StatusBadRequest, message{fmt.Sprintf("Invalid %s", name)})
			return
		}
		*dst = n
	}

	events, err := h.Events.List(r.Context(), f)
	if err != nil {
		h.sendError(w, r, err, "Event")
		return
	}

	// Returning an empty array instead of null if no events
	if events == nil {
		events = []models.Event{}
	}

	SendJSON(w, http.StatusOK, map[string][]models.Event{"events": events})
}

// HandleGetEvent handles GET /api/events/{id}
func (h *Handlers) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.Events.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.sendError(w, r, err, "Event")
		return
	}

	SendJSON(w, http.StatusOK, eventResponse{Event: ev})
}

// HandleCreateEvent handles POST /api/events
func (h *Handlers) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		h.sendError(w, r, err, "Event")
		return
	}

	ev, err := h.Events.Create(r.Context(), userID(r), &models.Event{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    models.Category(req.Category),
		Date:        date,
		Time:        strings.TrimSpace(req.Time),
		Location:    strings.TrimSpace(req.Location),
		Image:       strings.TrimSpace(req.Image),
		Capacity:    req.Capacity,
		Status:      models.Status(req.Status),
	})
	if err != nil {
		h.sendError(w, r, err, "Event")
		return
	}

	SendJSON(w, http.StatusCreated, eventResponse{Message: "Event created successfully", Event: ev})
}

// HandleUpdateEvent handles PUT /api/events/{id}
func (h *Handlers) HandleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		h.sendError(w, r, err, "Event")
		return
	}

	ev, err := h.Events.Update(r.Context(), r.PathValue("id"), userID(r), models.EventPatch{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    models.Category(req.Category),
		Date:        date,
		Time:        strings.TrimSpace(req.Time),
		Location:    strings.TrimSpace(req.Location),
		Image:       strings.TrimSpace(req.Image),
		Capacity:    req.Capacity,
		Status:      models.Status(req.Status),
	})
	if err != nil {
		h.sendError(w, r, err, "Event")
		return
	}

	SendJSON(w, http.StatusOK, eventResponse{Message: "Event updated successfully", Event: ev})
}

// HandleDeleteEvent handles DELETE /api/events/{id}
func (h *Handlers) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.Events.Delete(r.Context(), r.PathValue("id"), userID(r)); err != nil {
		h.sendError(w, r, err, "Event")
		return
	}

	SendJSON(w, http.StatusOK, message{"Event deleted successfully"})
}
