package rules

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Handler exposes rule management HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1/priority/rules", func(r chi.Router) {
		r.Post("/", h.createRule)          // POST   /api/v1/priority/rules
		r.Get("/", h.listRules)            // GET    /api/v1/priority/rules?active=true
		r.Get("/{id}", h.getRule)          // GET    /api/v1/priority/rules/{id}
		r.Put("/{id}", h.updateRule)       // PUT    /api/v1/priority/rules/{id}
		r.Delete("/{id}", h.deactivateRule) // DELETE /api/v1/priority/rules/{id}
	})
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rule, err := h.service.CreateRule(r.Context(), req)
	if err != nil {
		respond(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusCreated, rule)
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	var (
		out []*PriorityRule
		err error
	)
	if r.URL.Query().Get("active") == "true" {
		out, err = h.service.ListActiveRules(r.Context())
	} else {
		out, err = h.service.ListRules(r.Context())
	}
	if err != nil {
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, out)
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.service.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, rule)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rule, err := h.service.UpdateRule(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respond(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, rule)
}

func (h *Handler) deactivateRule(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeactivateRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		respond(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "rule deactivated"})
}

func statusFor(err error) int {
	var cfgErr *ConfigError
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
