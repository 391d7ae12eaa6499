package scoring

// TierThresholds are the lower bounds of the medium, high, and critical tiers.
// Scores below Medium classify as LOW. Boosted scores may exceed Critical by
// any amount; everything at or above it is CRITICAL.
type TierThresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

// DefaultTierThresholds matches the platform's historical tiering:
// LOW < 40, MEDIUM [40,70), HIGH [70,100), CRITICAL >= 100.
func DefaultTierThresholds() TierThresholds {
	return TierThresholds{Medium: 40, High: 70, Critical: 100}
}

// Classify maps a normalized score onto a priority tier.
func (t TierThresholds) Classify(score float64) PriorityTier {
	switch {
	case score >= t.Critical:
		return TierCritical
	case score >= t.High:
		return TierHigh
	case score >= t.Medium:
		return TierMedium
	default:
		return TierLow
	}
}
