package scoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fulfilq/priority-engine/internal/modules/profiles"
	"github.com/fulfilq/priority-engine/internal/modules/rules"
)

// Handler exposes priority scoring HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Post("/api/v1/priority/compute", h.computePriority)              // POST /api/v1/priority/compute
	r.Get("/api/v1/queues/{queue_id}/scores", h.listQueueScores)       // GET  /api/v1/queues/{queue_id}/scores
	r.Get("/api/v1/queues/{queue_id}/scores/{order_id}", h.getScore)   // GET  /api/v1/queues/{queue_id}/scores/{order_id}
	r.Get("/api/v1/queues/{queue_id}/fairness", h.fairnessReport)      // GET  /api/v1/queues/{queue_id}/fairness?window_minutes=120
}

func (h *Handler) computePriority(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
		return
	}
	queueID, err := uuid.Parse(req.QueueID)
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid queue_id"})
		return
	}
	score, err := h.service.ComputePriority(r.Context(), orderID, queueID)
	if err != nil {
		respond(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, score)
}

func (h *Handler) getScore(w http.ResponseWriter, r *http.Request) {
	queueID, err := uuid.Parse(chi.URLParam(r, "queue_id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid queue_id"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
		return
	}
	score, err := h.service.GetScore(r.Context(), queueID, orderID)
	if err != nil {
		respond(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, score)
}

func (h *Handler) listQueueScores(w http.ResponseWriter, r *http.Request) {
	queueID, err := uuid.Parse(chi.URLParam(r, "queue_id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid queue_id"})
		return
	}
	scores, err := h.service.ListQueueScores(r.Context(), queueID)
	if err != nil {
		respond(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, scores)
}

func (h *Handler) fairnessReport(w http.ResponseWriter, r *http.Request) {
	queueID, err := uuid.Parse(chi.URLParam(r, "queue_id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid queue_id"})
		return
	}
	window := time.Duration(0)
	if raw := r.URL.Query().Get("window_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes < 0 {
			respond(w, http.StatusBadRequest, map[string]string{"error": "invalid window_minutes"})
			return
		}
		window = time.Duration(minutes) * time.Minute
	}
	report, err := h.service.FairnessReport(r.Context(), queueID, window)
	if err != nil {
		respond(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, report)
}

func statusFor(err error) int {
	var cfgErr *rules.ConfigError
	var reqFailed *profiles.RequiredRuleFailed
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &cfgErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &reqFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
