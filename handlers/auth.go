package handlers

import (
	"net/http"

	"eventhub/models"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string              `json:"token"`
	User  *models.UserSummary `json:"user"`
}

// HandleSignup handles POST /api/auth/signup
func (h *Handlers) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decode(w, r, &req) {
		return
	}

	token, user, err := h.Auth.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.sendError(w, r, err, "User")
		return
	}

	SendJSON(w, http.StatusCreated, tokenResponse{Token: token, User: user.Summary()})
}

// HandleLogin handles POST /api/auth/login
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	token, user, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.sendError(w, r, err, "User")
		return
	}

	SendJSON(w, http.StatusOK, tokenResponse{Token: token, User: user.Summary()})
}

// HandleMe handles GET /api/auth/me
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.Auth.Me(r.Context(), userID(r))
	if err != nil {
		h.sendError(w, r, err, "User")
		return
	}

	SendJSON(w, http.StatusOK, map[string]*models.User{"user": user})
}
