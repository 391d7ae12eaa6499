package scoring

import (
	"time"

	"github.com/google/uuid"

	"github.com/fulfilq/priority-engine/internal/modules/profiles"
)

// PriorityTier is the coarse classification of a normalized score.
type PriorityTier string

const (
	TierLow      PriorityTier = "LOW"
	TierMedium   PriorityTier = "MEDIUM"
	TierHigh     PriorityTier = "HIGH"
	TierCritical PriorityTier = "CRITICAL"
)

// OrderPriorityScore is the persisted result of one priority computation for
// an (order, queue) pair. It is overwritten on every recomputation; the
// engine keeps no score history.
type OrderPriorityScore struct {
	OrderID         uuid.UUID                   `json:"order_id"`
	QueueID         uuid.UUID                   `json:"queue_id"`
	TotalScore      float64                     `json:"total_score"`
	NormalizedScore float64                     `json:"normalized_score"`
	Components      []profiles.RuleContribution `json:"components,omitempty"`
	Boosts          []string                    `json:"boosts,omitempty"`
	PriorityTier    PriorityTier                `json:"priority_tier"`
	ProfileUsed     string                      `json:"profile_used"`
	ComputedAt      time.Time                   `json:"computed_at"`
}

// FairnessReport summarises how evenly wait time is distributed across a
// queue's pending items.
type FairnessReport struct {
	QueueID       uuid.UUID `json:"queue_id"`
	FairnessIndex float64   `json:"fairness_index"`
	SampleSize    int       `json:"sample_size"`
}

// ComputeRequest is the payload for an on-demand priority computation.
type ComputeRequest struct {
	OrderID string `json:"order_id"`
	QueueID string `json:"queue_id"`
}
