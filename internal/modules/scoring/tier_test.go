package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tiers := DefaultTierThresholds()

	tests := []struct {
		score float64
		want  PriorityTier
	}{
		{0, TierLow},
		{39.99, TierLow},
		{40, TierMedium},
		{69.99, TierMedium},
		{70, TierHigh},
		{99.99, TierHigh},
		{100, TierCritical},
		{185, TierCritical}, // boosted scores run past 100
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tiers.Classify(tt.score), "score=%v", tt.score)
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	t.Parallel()

	tiers := TierThresholds{Medium: 20, High: 50, Critical: 90}
	require.Equal(t, TierLow, tiers.Classify(19))
	require.Equal(t, TierMedium, tiers.Classify(20))
	require.Equal(t, TierHigh, tiers.Classify(89))
	require.Equal(t, TierCritical, tiers.Classify(90))
}
