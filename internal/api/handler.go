// Package api provides the HTTP debug endpoints of the background process.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tebita/sidekick/internal/state"
	"github.com/tebita/sidekick/internal/store"
)

// Handler serves read-only views of the session state and the profile
// store.
type Handler struct {
	coord *state.Coordinator
	repo  store.Repository
}

// NewHandler creates the debug API handler.
func NewHandler(coord *state.Coordinator, repo store.Repository) *Handler {
	return &Handler{coord: coord, repo: repo}
}

// RegisterRoutes mounts the debug endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/state", h.getState)
	r.Get("/api/profile/{identityID}", h.getProfile)
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.coord.Snapshot())
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "identityID")
	p, err := h.repo.FetchProfile(r.Context(), identityID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to fetch profile")
		return
	}
	if p == nil {
		Error(w, http.StatusNotFound, "profile not found")
		return
	}
	JSON(w, http.StatusOK, p)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
