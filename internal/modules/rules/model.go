package rules

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AlgorithmType identifies the scoring algorithm a rule implements. The set is
// closed: Evaluate switches exhaustively over these variants, so adding an
// algorithm is a compile-time change, not a registry lookup.
type AlgorithmType string

const (
	AlgorithmPreparationTime AlgorithmType = "PREPARATION_TIME" // Favour orders that are quick to prepare
	AlgorithmDeliveryWindow  AlgorithmType = "DELIVERY_WINDOW"  // Escalate orders approaching their delivery deadline
	AlgorithmVipStatus       AlgorithmType = "VIP_STATUS"       // Score by customer loyalty tier
	AlgorithmOrderValue      AlgorithmType = "ORDER_VALUE"      // Score by order total
)

// ScoreShape describes how raw inputs map onto the score range.
type ScoreShape string

const (
	ShapeLinear ScoreShape = "LINEAR"
)

// PriorityRule is a configurable scoring rule. Parameters holds the
// algorithm-specific constants as JSON and is decoded into one of the typed
// *Params structs at evaluation time.
type PriorityRule struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	AlgorithmType AlgorithmType   `json:"algorithm_type"`
	IsActive      bool            `json:"is_active"`
	Weight        float64         `json:"weight"`
	MinScore      float64         `json:"min_score"`
	MaxScore      float64         `json:"max_score"`
	Parameters    json.RawMessage `json:"parameters"`
	ScoreShape    ScoreShape      `json:"score_shape"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PreparationTimeParams configures the PREPARATION_TIME algorithm.
// Orders whose summed prep minutes stay at or under BaseMinutes score at the
// top of the range; every minute beyond it costs PenaltyPerMinute points.
type PreparationTimeParams struct {
	BaseMinutes      float64 `json:"base_minutes"`
	PenaltyPerMinute float64 `json:"penalty_per_minute"`
}

// DeliveryWindowParams configures the DELIVERY_WINDOW algorithm.
// GraceMinutes bounds the "almost due" band, CriticalMinutes the "getting
// close" band; beyond CriticalMinutes urgency tapers toward the minimum.
type DeliveryWindowParams struct {
	GraceMinutes    float64 `json:"grace_minutes"`
	CriticalMinutes float64 `json:"critical_minutes"`
}

// VipStatusParams configures the VIP_STATUS algorithm with a loyalty
// tier → score table.
type VipStatusParams struct {
	TierScores map[string]float64 `json:"tier_scores"`
}

// OrderValueParams configures the ORDER_VALUE algorithm. Order totals are
// interpolated linearly between MinValue and MaxValue onto the score range.
type OrderValueParams struct {
	MinValue float64 `json:"min_value"`
	MaxValue float64 `json:"max_value"`
}

// CreateRuleRequest is the payload for creating or updating a priority rule.
type CreateRuleRequest struct {
	Name          string          `json:"name"`
	AlgorithmType string          `json:"algorithm_type"`
	Weight        float64         `json:"weight"`
	MinScore      float64         `json:"min_score"`
	MaxScore      float64         `json:"max_score"`
	Parameters    json.RawMessage `json:"parameters"`
	IsActive      *bool           `json:"is_active,omitempty"`
}
