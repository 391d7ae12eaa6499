package profiles

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fulfilq/priority-engine/internal/modules/rules"
)

// Handler exposes profile management HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1/priority/profiles", func(r chi.Router) {
		r.Post("/", h.createProfile)           // POST   /api/v1/priority/profiles
		r.Get("/", h.listProfiles)             // GET    /api/v1/priority/profiles
		r.Get("/{id}", h.getProfile)           // GET    /api/v1/priority/profiles/{id}
		r.Put("/{id}", h.updateProfile)        // PUT    /api/v1/priority/profiles/{id}
		r.Delete("/{id}", h.deactivateProfile) // DELETE /api/v1/priority/profiles/{id}
	})
}

func (h *Handler) createProfile(w http.ResponseWriter, r *http.Request) {
	var req SaveProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	profile, err := h.service.CreateProfile(r.Context(), req)
	if err != nil {
		respond(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusCreated, profile)
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListProfiles(r.Context())
	if err != nil {
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, out)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, profile)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req SaveProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	profile, err := h.service.UpdateProfile(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respond(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, profile)
}

func (h *Handler) deactivateProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeactivateProfile(r.Context(), chi.URLParam(r, "id")); err != nil {
		respond(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "profile deactivated"})
}

func statusFor(err error) int {
	var cfgErr *rules.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusUnprocessableEntity
	case strings.Contains(err.Error(), "not found"):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
