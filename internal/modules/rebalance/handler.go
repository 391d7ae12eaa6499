package rebalance

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fulfilq/priority-engine/internal/modules/scoring"
)

// Handler exposes the on-demand rebalance trigger.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Post("/api/v1/queues/{queue_id}/rebalance", h.rebalanceQueue) // POST /api/v1/queues/{queue_id}/rebalance
}

func (h *Handler) rebalanceQueue(w http.ResponseWriter, r *http.Request) {
	queueID, err := uuid.Parse(chi.URLParam(r, "queue_id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid queue_id"})
		return
	}
	result, err := h.service.RebalanceQueue(r.Context(), queueID)
	if err != nil {
		var aborted *Aborted
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, scoring.ErrNotFound):
			code = http.StatusNotFound
		case errors.As(err, &aborted):
			code = http.StatusConflict
		}
		respond(w, code, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, result)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
