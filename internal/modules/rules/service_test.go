package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	rules map[string]*PriorityRule
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rules: make(map[string]*PriorityRule)}
}

func (m *memoryRepo) Create(_ context.Context, rule *PriorityRule) error {
	m.rules[rule.ID.String()] = rule
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*PriorityRule, error) {
	if r, ok := m.rules[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryRepo) List(_ context.Context) ([]*PriorityRule, error) {
	out := make([]*PriorityRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryRepo) ListActive(_ context.Context) ([]*PriorityRule, error) {
	var out []*PriorityRule
	for _, r := range m.rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRepo) Update(_ context.Context, rule *PriorityRule) error {
	m.rules[rule.ID.String()] = rule
	return nil
}

func (m *memoryRepo) Deactivate(_ context.Context, id string) error {
	if r, ok := m.rules[id]; ok {
		r.IsActive = false
	}
	return nil
}

func TestCreateRuleValidation(t *testing.T) {
	t.Parallel()

	valid := CreateRuleRequest{
		Name:          "rush orders first",
		AlgorithmType: "preparation_time",
		Weight:        1.5,
		MinScore:      0,
		MaxScore:      100,
		Parameters:    json.RawMessage(`{"base_minutes":10,"penalty_per_minute":2}`),
	}

	t.Run("valid rule persists and normalizes the algorithm name", func(t *testing.T) {
		svc := NewService(newMemoryRepo())
		rule, err := svc.CreateRule(context.Background(), valid)
		require.NoError(t, err)
		require.Equal(t, AlgorithmPreparationTime, rule.AlgorithmType)
		require.True(t, rule.IsActive)
		require.Equal(t, ShapeLinear, rule.ScoreShape)
	})

	tests := []struct {
		name   string
		mutate func(*CreateRuleRequest)
		field  string
	}{
		{"missing name", func(r *CreateRuleRequest) { r.Name = " " }, "name"},
		{"zero weight", func(r *CreateRuleRequest) { r.Weight = 0 }, "weight"},
		{"negative weight", func(r *CreateRuleRequest) { r.Weight = -1 }, "weight"},
		{"inverted score bounds", func(r *CreateRuleRequest) { r.MinScore, r.MaxScore = 90, 10 }, "min_score"},
		{"unknown algorithm", func(r *CreateRuleRequest) { r.AlgorithmType = "COIN_FLIP" }, "algorithm_type"},
		{"missing parameters", func(r *CreateRuleRequest) { r.Parameters = nil }, "parameters"},
		{"malformed parameters", func(r *CreateRuleRequest) { r.Parameters = json.RawMessage(`{`) }, "parameters"},
		{"negative penalty", func(r *CreateRuleRequest) {
			r.Parameters = json.RawMessage(`{"base_minutes":10,"penalty_per_minute":-2}`)
		}, "parameters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newMemoryRepo())
			req := valid
			tt.mutate(&req)
			_, err := svc.CreateRule(context.Background(), req)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestCreateRulePerAlgorithmParams(t *testing.T) {
	t.Parallel()

	svc := NewService(newMemoryRepo())

	cases := []struct {
		name      string
		algorithm string
		params    string
		wantErr   bool
	}{
		{"delivery window valid", "DELIVERY_WINDOW", `{"grace_minutes":15,"critical_minutes":60}`, false},
		{"delivery window grace above critical", "DELIVERY_WINDOW", `{"grace_minutes":60,"critical_minutes":15}`, true},
		{"vip valid", "VIP_STATUS", `{"tier_scores":{"gold":80,"vip":100}}`, false},
		{"vip empty table", "VIP_STATUS", `{"tier_scores":{}}`, true},
		{"order value valid", "ORDER_VALUE", `{"min_value":10,"max_value":500}`, false},
		{"order value inverted", "ORDER_VALUE", `{"min_value":500,"max_value":10}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateRule(context.Background(), CreateRuleRequest{
				Name:          tc.name,
				AlgorithmType: tc.algorithm,
				Weight:        1,
				MaxScore:      100,
				Parameters:    json.RawMessage(tc.params),
			})
			if tc.wantErr {
				var cfgErr *ConfigError
				require.ErrorAs(t, err, &cfgErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDeactivateRuleKeepsRecord(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	svc := NewService(repo)
	rule, err := svc.CreateRule(context.Background(), CreateRuleRequest{
		Name:          "big spenders",
		AlgorithmType: "ORDER_VALUE",
		Weight:        2,
		MaxScore:      100,
		Parameters:    json.RawMessage(`{"min_value":0,"max_value":100}`),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateRule(context.Background(), rule.ID.String()))

	kept, err := svc.GetRule(context.Background(), rule.ID.String())
	require.NoError(t, err)
	require.False(t, kept.IsActive)

	active, err := svc.ListActiveRules(context.Background())
	require.NoError(t, err)
	require.Empty(t, active)
}
