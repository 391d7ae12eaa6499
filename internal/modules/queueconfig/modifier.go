package queueconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/fulfilq/priority-engine/internal/modules/snapshot"
)

// Loyalty tiers ordered low to high, used to compare a customer's tier
// against the configured VIP floor.
var tierRank = map[string]int{
	"bronze":   1,
	"silver":   2,
	"gold":     3,
	"platinum": 4,
	"vip":      5,
}

// ApplyModifiers layers business boosts onto a composed score: additive
// boosts first (VIP, already-late, large party), then the peak-hour
// multiplier. Boosted scores are deliberately unbounded above 100; the tier
// classifier, not this step, decides what "critical" means.
func ApplyModifiers(score float64, cfg *QueuePriorityConfig, order *snapshot.Order, customer *snapshot.Customer, now time.Time) (float64, []string) {
	var reasons []string

	if cfg.VipBoost > 0 && customer != nil && meetsTierFloor(customer.LoyaltyTier, cfg.VipTierFloor) {
		score += cfg.VipBoost
		reasons = append(reasons, fmt.Sprintf("vip boost +%.0f (%s)", cfg.VipBoost, customer.LoyaltyTier))
	}

	if cfg.DelayedBoost > 0 && order.ScheduledAt != nil && !now.Before(*order.ScheduledAt) {
		score += cfg.DelayedBoost
		reasons = append(reasons, fmt.Sprintf("delayed boost +%.0f", cfg.DelayedBoost))
	}

	if cfg.LargePartyBoost > 0 && cfg.LargePartyThreshold > 0 && order.PartySize > cfg.LargePartyThreshold {
		score += cfg.LargePartyBoost
		reasons = append(reasons, fmt.Sprintf("large party boost +%.0f (%d guests)", cfg.LargePartyBoost, order.PartySize))
	}

	if cfg.PeakMultiplier > 1 && InPeakWindow(cfg.PeakWindows, now) {
		score *= cfg.PeakMultiplier
		reasons = append(reasons, fmt.Sprintf("peak multiplier x%.2f", cfg.PeakMultiplier))
	}

	return score, reasons
}

// InPeakWindow reports whether t falls inside any configured peak window.
func InPeakWindow(windows []PeakWindow, t time.Time) bool {
	for _, w := range windows {
		if t.Weekday() != w.Weekday {
			continue
		}
		hour := t.Hour()
		if w.StartHour <= w.EndHour {
			if hour >= w.StartHour && hour < w.EndHour {
				return true
			}
		} else if hour >= w.StartHour || hour < w.EndHour {
			return true
		}
	}
	return false
}

func meetsTierFloor(tier string, floor string) bool {
	if floor == "" {
		floor = "vip"
	}
	have, ok := tierRank[strings.ToLower(strings.TrimSpace(tier))]
	if !ok {
		return false
	}
	want, ok := tierRank[strings.ToLower(strings.TrimSpace(floor))]
	if !ok {
		return false
	}
	return have >= want
}
