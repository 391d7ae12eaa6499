package profiles

import (
	"time"

	"github.com/google/uuid"
)

// NormalizationMethod names how a composed total is mapped into [0, 100].
type NormalizationMethod string

const (
	NormalizationMinMax NormalizationMethod = "MIN_MAX"
)

// PriorityProfile is a weighted set of scoring rules applied as a unit to
// every (order, queue) pair whose queue config references it.
type PriorityProfile struct {
	ID                  uuid.UUID           `json:"id"`
	Name                string              `json:"name"`
	IsActive            bool                `json:"is_active"`
	IsDefault           bool                `json:"is_default"`
	Normalize           bool                `json:"normalize"`
	NormalizationMethod NormalizationMethod `json:"normalization_method"`
	Rules               []ProfileRule       `json:"rules"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// ProfileRule binds one PriorityRule into a profile. FallbackScore is the raw
// score substituted when the rule is inapplicable or fails; a required rule
// fails the whole composition instead.
type ProfileRule struct {
	RuleID         uuid.UUID `json:"rule_id"`
	Position       int       `json:"position"`
	WeightOverride *float64  `json:"weight_override,omitempty"`
	IsRequired     bool      `json:"is_required"`
	FallbackScore  float64   `json:"fallback_score"`
}

// SaveProfileRequest is the payload for creating or updating a profile.
type SaveProfileRequest struct {
	Name                string               `json:"name"`
	IsActive            *bool                `json:"is_active,omitempty"`
	IsDefault           bool                 `json:"is_default"`
	Normalize           bool                 `json:"normalize"`
	NormalizationMethod string               `json:"normalization_method,omitempty"`
	Rules               []ProfileRuleRequest `json:"rules"`
}

// ProfileRuleRequest is one rule binding within a SaveProfileRequest.
type ProfileRuleRequest struct {
	RuleID         string   `json:"rule_id"`
	WeightOverride *float64 `json:"weight_override,omitempty"`
	IsRequired     bool     `json:"is_required"`
	FallbackScore  float64  `json:"fallback_score"`
}
