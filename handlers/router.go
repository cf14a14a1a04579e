package handlers

import (
	"net/http"

	"eventhub/middleware"
)

// NewRouter registers every route under /api. Routes that act on behalf of a
// user are wrapped in authn.
func NewRouter(h *Handlers, authn middleware.Middleware) *http.ServeMux {
	mux := http.NewServeMux()
	protected := func(fn http.HandlerFunc) http.Handler { return authn(fn) }

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		SendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/auth/signup", h.HandleSignup)
	mux.HandleFunc("POST /api/auth/login", h.HandleLogin)
	mux.Handle("GET /api/auth/me", protected(h.HandleMe))

	mux.HandleFunc("GET /api/events", h.HandleListEvents)
	mux.HandleFunc("GET /api/events/{id}", h.HandleGetEvent)
	mux.Handle("POST /api/events", protected(h.HandleCreateEvent))
	mux.Handle("PUT /api/events/{id}", protected(h.HandleUpdateEvent))
	mux.Handle("DELETE /api/events/{id}", protected(h.HandleDeleteEvent))

	mux.Handle("POST /api/registrations", protected(h.HandleRegister))
	mux.Handle("GET /api/registrations", protected(h.HandleListMine))
	mux.Handle("DELETE /api/registrations/{id}", protected(h.HandleUnregister))
	mux.Handle("GET /api/registrations/event/{eventId}", protected(h.HandleListForEvent))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		SendJSON(w, http.StatusNotFound, message{"Route not found"})
	})

	return mux
}
