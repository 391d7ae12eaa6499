package queueconfig

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fulfilq/priority-engine/internal/modules/rules"
)

// Handler exposes queue priority config HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1/priority/queue-configs", func(r chi.Router) {
		r.Get("/", h.listConfigs)                // GET    /api/v1/priority/queue-configs
		r.Put("/{queue_id}", h.saveConfig)       // PUT    /api/v1/priority/queue-configs/{queue_id}
		r.Get("/{queue_id}", h.getConfig)        // GET    /api/v1/priority/queue-configs/{queue_id}
		r.Delete("/{queue_id}", h.deleteConfig)  // DELETE /api/v1/priority/queue-configs/{queue_id}
	})
}

func (h *Handler) saveConfig(w http.ResponseWriter, r *http.Request) {
	var req SaveConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	cfg, err := h.service.SaveConfig(r.Context(), chi.URLParam(r, "queue_id"), req)
	if err != nil {
		respond(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, cfg)
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetConfig(r.Context(), chi.URLParam(r, "queue_id"))
	if err != nil {
		respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, cfg)
}

func (h *Handler) listConfigs(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListRebalanceEnabled(r.Context())
	if err != nil {
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, out)
}

func (h *Handler) deleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteConfig(r.Context(), chi.URLParam(r, "queue_id")); err != nil {
		respond(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "queue config deleted"})
}

func statusFor(err error) int {
	var cfgErr *rules.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusUnprocessableEntity
	case strings.Contains(err.Error(), "not found"):
		return http.StatusNotFound
	case strings.Contains(err.Error(), "invalid"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
