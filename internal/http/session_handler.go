package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/foodcart/internal/domain"
)

type SessionHandler struct {
	timeout time.Duration
}

func NewSessionHandler(timeout time.Duration) *SessionHandler {
	return &SessionHandler{timeout: timeout}
}

// LoginRequestDTO carries what the auth collaborator knows about the user.
// A missing cart keeps the anonymous cart.
type LoginRequestDTO struct {
	Profile *domain.Profile       `json:"profile"`
	Cart    []domain.CartLineItem `json:"cart"`
}

// POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Profile == nil {
		respondError(w, http.StatusBadRequest, "missing_profile", "profile is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(ctx)
	if err := s.Login(ctx, req.Profile, req.Cart); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.CartView())
}

// POST /api/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := sessionFromContext(ctx).Logout(ctx); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
