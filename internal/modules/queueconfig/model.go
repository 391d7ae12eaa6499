package queueconfig

import (
	"time"

	"github.com/google/uuid"
)

// PeakWindow is a recurring busy period matched by day-of-week and hour range.
// StartHour > EndHour wraps past midnight: a 22-2 window on Friday matches
// Friday 23:00 and Friday 01:00.
type PeakWindow struct {
	Weekday   time.Weekday `json:"weekday"`
	StartHour int          `json:"start_hour"` // inclusive, 0-23
	EndHour   int          `json:"end_hour"`   // exclusive, 0-24
}

// QueuePriorityConfig holds the per-queue scoring and rebalancing knobs.
type QueuePriorityConfig struct {
	QueueID                  uuid.UUID    `json:"queue_id"`
	ProfileID                *uuid.UUID   `json:"profile_id,omitempty"` // nil falls back to manual-priority scoring
	VipBoost                 float64      `json:"vip_boost"`
	VipTierFloor             string       `json:"vip_tier_floor"`
	DelayedBoost             float64      `json:"delayed_boost"`
	LargePartyBoost          float64      `json:"large_party_boost"`
	LargePartyThreshold      int          `json:"large_party_threshold"`
	RebalanceEnabled         bool         `json:"rebalance_enabled"`
	RebalanceIntervalSeconds int          `json:"rebalance_interval_seconds"`
	MaxPositionChange        int          `json:"max_position_change"`
	PeakWindows              []PeakWindow `json:"peak_windows,omitempty"`
	PeakMultiplier           float64      `json:"peak_multiplier"`
	CreatedAt                time.Time    `json:"created_at"`
	UpdatedAt                time.Time    `json:"updated_at"`
}

// SaveConfigRequest is the payload for creating or updating a queue config.
type SaveConfigRequest struct {
	ProfileID                string       `json:"profile_id,omitempty"`
	VipBoost                 float64      `json:"vip_boost"`
	VipTierFloor             string       `json:"vip_tier_floor,omitempty"`
	DelayedBoost             float64      `json:"delayed_boost"`
	LargePartyBoost          float64      `json:"large_party_boost"`
	LargePartyThreshold      int          `json:"large_party_threshold"`
	RebalanceEnabled         bool         `json:"rebalance_enabled"`
	RebalanceIntervalSeconds int          `json:"rebalance_interval_seconds"`
	MaxPositionChange        int          `json:"max_position_change"`
	PeakWindows              []PeakWindow `json:"peak_windows,omitempty"`
	PeakMultiplier           float64      `json:"peak_multiplier"`
}
