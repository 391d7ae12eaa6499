package profiles

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fulfilq/priority-engine/internal/modules/rules"
)

// memoryProfileRepo mirrors the Repository contract: persisting a default
// profile demotes every other default in the same operation.
type memoryProfileRepo struct {
	profiles []*PriorityProfile
}

func (m *memoryProfileRepo) Create(_ context.Context, p *PriorityProfile) error {
	m.demoteOthers(p)
	cp := *p
	m.profiles = append(m.profiles, &cp)
	return nil
}

func (m *memoryProfileRepo) GetByID(_ context.Context, id string) (*PriorityProfile, error) {
	for _, p := range m.profiles {
		if p.ID.String() == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryProfileRepo) GetDefault(_ context.Context) (*PriorityProfile, error) {
	for _, p := range m.profiles {
		if p.IsDefault && p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryProfileRepo) List(_ context.Context) ([]*PriorityProfile, error) {
	out := make([]*PriorityProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memoryProfileRepo) Update(_ context.Context, p *PriorityProfile) error {
	m.demoteOthers(p)
	for i, existing := range m.profiles {
		if existing.ID == p.ID {
			cp := *p
			m.profiles[i] = &cp
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memoryProfileRepo) Deactivate(_ context.Context, id string) error {
	for _, p := range m.profiles {
		if p.ID.String() == id {
			p.IsActive = false
			p.IsDefault = false
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memoryProfileRepo) demoteOthers(p *PriorityProfile) {
	if !p.IsDefault {
		return
	}
	for _, other := range m.profiles {
		if other.ID != p.ID {
			other.IsDefault = false
		}
	}
}

type memoryRuleRepo struct {
	rules []*rules.PriorityRule
}

func (m *memoryRuleRepo) Create(_ context.Context, r *rules.PriorityRule) error {
	m.rules = append(m.rules, r)
	return nil
}

func (m *memoryRuleRepo) GetByID(_ context.Context, id string) (*rules.PriorityRule, error) {
	for _, r := range m.rules {
		if r.ID.String() == id {
			return r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryRuleRepo) List(_ context.Context) ([]*rules.PriorityRule, error) {
	return m.rules, nil
}

func (m *memoryRuleRepo) ListActive(_ context.Context) ([]*rules.PriorityRule, error) {
	var out []*rules.PriorityRule
	for _, r := range m.rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRuleRepo) Update(context.Context, *rules.PriorityRule) error { return nil }
func (m *memoryRuleRepo) Deactivate(context.Context, string) error          { return nil }

func newProfileService(t *testing.T) (Service, *memoryProfileRepo, *rules.PriorityRule) {
	t.Helper()
	rule := &rules.PriorityRule{
		ID:            uuid.New(),
		Name:          "order value",
		AlgorithmType: rules.AlgorithmOrderValue,
		Weight:        1,
		IsActive:      true,
	}
	repo := &memoryProfileRepo{}
	return NewService(repo, &memoryRuleRepo{rules: []*rules.PriorityRule{rule}}), repo, rule
}

func saveRequest(name string, isDefault bool, ruleID uuid.UUID) SaveProfileRequest {
	return SaveProfileRequest{
		Name:      name,
		IsDefault: isDefault,
		Rules:     []ProfileRuleRequest{{RuleID: ruleID.String()}},
	}
}

func countDefaults(t *testing.T, repo *memoryProfileRepo) int {
	t.Helper()
	n := 0
	for _, p := range repo.profiles {
		if p.IsDefault && p.IsActive {
			n++
		}
	}
	return n
}

func TestCreateProfileSingleDefault(t *testing.T) {
	t.Parallel()

	svc, repo, rule := newProfileService(t)
	ctx := context.Background()

	first, err := svc.CreateProfile(ctx, saveRequest("rush hour", true, rule.ID))
	require.NoError(t, err)
	require.True(t, first.IsDefault)

	second, err := svc.CreateProfile(ctx, saveRequest("weekend", true, rule.ID))
	require.NoError(t, err)

	// Promoting the second profile must demote the first in the same
	// persistence step; the store never holds two active defaults.
	require.Equal(t, 1, countDefaults(t, repo))
	got, err := repo.GetDefault(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)

	demoted, err := svc.GetProfile(ctx, first.ID.String())
	require.NoError(t, err)
	require.False(t, demoted.IsDefault)
}

func TestUpdateProfilePromotesDefault(t *testing.T) {
	t.Parallel()

	svc, repo, rule := newProfileService(t)
	ctx := context.Background()

	old, err := svc.CreateProfile(ctx, saveRequest("rush hour", true, rule.ID))
	require.NoError(t, err)
	next, err := svc.CreateProfile(ctx, saveRequest("weekend", false, rule.ID))
	require.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, next.ID.String(), saveRequest("weekend", true, rule.ID))
	require.NoError(t, err)

	require.Equal(t, 1, countDefaults(t, repo))
	got, err := repo.GetDefault(ctx)
	require.NoError(t, err)
	require.Equal(t, next.ID, got.ID)

	demoted, err := svc.GetProfile(ctx, old.ID.String())
	require.NoError(t, err)
	require.False(t, demoted.IsDefault)
}

func TestDeactivateDefaultProfile(t *testing.T) {
	t.Parallel()

	svc, repo, rule := newProfileService(t)
	ctx := context.Background()

	p, err := svc.CreateProfile(ctx, saveRequest("rush hour", true, rule.ID))
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateProfile(ctx, p.ID.String()))

	require.Equal(t, 0, countDefaults(t, repo))
	_, err = repo.GetDefault(ctx)
	require.ErrorIs(t, err, sql.ErrNoRows)
}
