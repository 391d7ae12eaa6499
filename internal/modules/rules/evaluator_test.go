package rules

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fulfilq/priority-engine/internal/modules/snapshot"
)

func newRule(alg AlgorithmType, params string) *PriorityRule {
	return &PriorityRule{
		ID:            uuid.New(),
		Name:          "test " + string(alg),
		AlgorithmType: alg,
		IsActive:      true,
		Weight:        1.0,
		MinScore:      0,
		MaxScore:      100,
		Parameters:    json.RawMessage(params),
	}
}

func minutesPtr(m float64) *float64 { return &m }

func TestEvaluatePreparationTime(t *testing.T) {
	t.Parallel()

	rule := newRule(AlgorithmPreparationTime, `{"base_minutes":10,"penalty_per_minute":2}`)

	t.Run("under base scores max", func(t *testing.T) {
		order := &snapshot.Order{Items: []snapshot.OrderItem{
			{Quantity: 2, PrepMinutes: minutesPtr(3)},
		}}
		got, err := Evaluate(rule, EvalInput{Order: order, Now: time.Now()})
		require.NoError(t, err)
		require.Equal(t, 100.0, got)
	})

	t.Run("over base pays penalty per minute", func(t *testing.T) {
		// 1 item x 15 min = 15 total, 5 over base, 2 points each
		order := &snapshot.Order{Items: []snapshot.OrderItem{
			{Quantity: 1, PrepMinutes: minutesPtr(15)},
		}}
		got, err := Evaluate(rule, EvalInput{Order: order, Now: time.Now()})
		require.NoError(t, err)
		require.Equal(t, 90.0, got)
	})

	t.Run("quantity multiplies prep time", func(t *testing.T) {
		order := &snapshot.Order{Items: []snapshot.OrderItem{
			{Quantity: 4, PrepMinutes: minutesPtr(5)},
		}}
		got, err := Evaluate(rule, EvalInput{Order: order, Now: time.Now()})
		require.NoError(t, err)
		require.Equal(t, 80.0, got)
	})

	t.Run("no prep estimates fast-tracks to max", func(t *testing.T) {
		order := &snapshot.Order{Items: []snapshot.OrderItem{
			{Quantity: 1},
			{Quantity: 3},
		}}
		got, err := Evaluate(rule, EvalInput{Order: order, Now: time.Now()})
		require.NoError(t, err)
		require.Equal(t, 100.0, got)
	})

	t.Run("huge prep time clamps to min", func(t *testing.T) {
		order := &snapshot.Order{Items: []snapshot.OrderItem{
			{Quantity: 1, PrepMinutes: minutesPtr(10000)},
		}}
		got, err := Evaluate(rule, EvalInput{Order: order, Now: time.Now()})
		require.NoError(t, err)
		require.Equal(t, 0.0, got)
	})
}

func TestEvaluateDeliveryWindow(t *testing.T) {
	t.Parallel()

	rule := newRule(AlgorithmDeliveryWindow, `{"grace_minutes":15,"critical_minutes":60}`)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	scheduled := func(minutesFromNow float64) *snapshot.Order {
		at := now.Add(time.Duration(minutesFromNow * float64(time.Minute)))
		return &snapshot.Order{ScheduledAt: &at}
	}

	t.Run("already late scores max", func(t *testing.T) {
		got, err := Evaluate(rule, EvalInput{Order: scheduled(-5), Now: now})
		require.NoError(t, err)
		require.Equal(t, 100.0, got)
	})

	t.Run("exactly due scores max", func(t *testing.T) {
		got, err := Evaluate(rule, EvalInput{Order: scheduled(0), Now: now})
		require.NoError(t, err)
		require.Equal(t, 100.0, got)
	})

	t.Run("inside grace window lands in the top band", func(t *testing.T) {
		got, err := Evaluate(rule, EvalInput{Order: scheduled(10), Now: now})
		require.NoError(t, err)
		require.Greater(t, got, 85.0)
		require.LessOrEqual(t, got, 100.0)
	})

	t.Run("inside critical window lands in the middle band", func(t *testing.T) {
		got, err := Evaluate(rule, EvalInput{Order: scheduled(30), Now: now})
		require.NoError(t, err)
		require.Greater(t, got, 30.0)
		require.Less(t, got, 70.0)
	})

	t.Run("far out decays toward min", func(t *testing.T) {
		near, err := Evaluate(rule, EvalInput{Order: scheduled(120), Now: now})
		require.NoError(t, err)
		far, err := Evaluate(rule, EvalInput{Order: scheduled(600), Now: now})
		require.NoError(t, err)
		require.Less(t, near, 30.0)
		require.Less(t, far, near)
		require.GreaterOrEqual(t, far, 0.0)
	})

	t.Run("urgency is monotonic as the deadline approaches", func(t *testing.T) {
		prev := -1.0
		for _, m := range []float64{600, 120, 60, 45, 30, 15, 10, 5, 0, -10} {
			got, err := Evaluate(rule, EvalInput{Order: scheduled(m), Now: now})
			require.NoError(t, err)
			require.GreaterOrEqual(t, got, prev, "remaining=%v", m)
			prev = got
		}
	})

	t.Run("no scheduled time is inapplicable", func(t *testing.T) {
		_, err := Evaluate(rule, EvalInput{Order: &snapshot.Order{}, Now: now})
		require.ErrorIs(t, err, ErrInapplicable)
	})

	t.Run("bad window parameters fail", func(t *testing.T) {
		bad := newRule(AlgorithmDeliveryWindow, `{"grace_minutes":60,"critical_minutes":15}`)
		_, err := Evaluate(bad, EvalInput{Order: scheduled(10), Now: now})
		var evalErr *EvaluationError
		require.ErrorAs(t, err, &evalErr)
		require.Equal(t, AlgorithmDeliveryWindow, evalErr.Algorithm)
	})
}

func TestEvaluateVipStatus(t *testing.T) {
	t.Parallel()

	rule := newRule(AlgorithmVipStatus, `{"tier_scores":{"Gold":80,"platinum":95,"VIP":100}}`)
	order := &snapshot.Order{}

	t.Run("tier lookup is case-insensitive", func(t *testing.T) {
		got, err := Evaluate(rule, EvalInput{
			Order:    order,
			Customer: &snapshot.Customer{LoyaltyTier: "GOLD"},
		})
		require.NoError(t, err)
		require.Equal(t, 80.0, got)
	})

	t.Run("unknown tier scores min", func(t *testing.T) {
		got, err := Evaluate(rule, EvalInput{
			Order:    order,
			Customer: &snapshot.Customer{LoyaltyTier: "bronze"},
		})
		require.NoError(t, err)
		require.Equal(t, 0.0, got)
	})

	t.Run("walk-in order scores min", func(t *testing.T) {
		got, err := Evaluate(rule, EvalInput{Order: order, Customer: nil})
		require.NoError(t, err)
		require.Equal(t, 0.0, got)
	})

	t.Run("tier score above max clamps", func(t *testing.T) {
		capped := newRule(AlgorithmVipStatus, `{"tier_scores":{"vip":500}}`)
		got, err := Evaluate(capped, EvalInput{
			Order:    order,
			Customer: &snapshot.Customer{LoyaltyTier: "vip"},
		})
		require.NoError(t, err)
		require.Equal(t, 100.0, got)
	})
}

func TestEvaluateOrderValue(t *testing.T) {
	t.Parallel()

	rule := newRule(AlgorithmOrderValue, `{"min_value":20,"max_value":220}`)

	tests := []struct {
		name  string
		total float64
		want  float64
	}{
		{"below min clamps to min score", 5, 0},
		{"at min", 20, 0},
		{"midpoint interpolates linearly", 120, 50},
		{"at max", 220, 100},
		{"above max clamps to max score", 1000, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(rule, EvalInput{Order: &snapshot.Order{Total: tt.total}})
			require.NoError(t, err)
			require.InDelta(t, tt.want, got, 1e-9)
		})
	}

	t.Run("inverted bounds fail", func(t *testing.T) {
		bad := newRule(AlgorithmOrderValue, `{"min_value":100,"max_value":100}`)
		_, err := Evaluate(bad, EvalInput{Order: &snapshot.Order{Total: 50}})
		var evalErr *EvaluationError
		require.ErrorAs(t, err, &evalErr)
	})
}

func TestEvaluateErrors(t *testing.T) {
	t.Parallel()

	t.Run("nil order", func(t *testing.T) {
		rule := newRule(AlgorithmOrderValue, `{"min_value":0,"max_value":100}`)
		_, err := Evaluate(rule, EvalInput{})
		require.Error(t, err)
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		rule := newRule(AlgorithmType("COIN_FLIP"), `{}`)
		_, err := Evaluate(rule, EvalInput{Order: &snapshot.Order{}})
		var evalErr *EvaluationError
		require.ErrorAs(t, err, &evalErr)
	})

	t.Run("missing parameters", func(t *testing.T) {
		rule := newRule(AlgorithmOrderValue, ``)
		rule.Parameters = nil
		_, err := Evaluate(rule, EvalInput{Order: &snapshot.Order{}})
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrInapplicable))
	})
}
