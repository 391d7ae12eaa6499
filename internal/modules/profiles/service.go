package profiles

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fulfilq/priority-engine/internal/modules/rules"
)

// Service defines priority profile management.
type Service interface {
	CreateProfile(ctx context.Context, req SaveProfileRequest) (*PriorityProfile, error)
	GetProfile(ctx context.Context, id string) (*PriorityProfile, error)
	ListProfiles(ctx context.Context) ([]*PriorityProfile, error)
	UpdateProfile(ctx context.Context, id string, req SaveProfileRequest) (*PriorityProfile, error)
	DeactivateProfile(ctx context.Context, id string) error
}

type service struct {
	repo  Repository
	rules rules.Repository
}

func NewService(repo Repository, ruleRepo rules.Repository) Service {
	return &service{repo: repo, rules: ruleRepo}
}

func (s *service) CreateProfile(ctx context.Context, req SaveProfileRequest) (*PriorityProfile, error) {
	profile := &PriorityProfile{
		ID:                  uuid.New(),
		Name:                req.Name,
		IsActive:            true,
		IsDefault:           req.IsDefault,
		Normalize:           req.Normalize,
		NormalizationMethod: NormalizationMinMax,
	}
	if req.IsActive != nil {
		profile.IsActive = *req.IsActive
	}
	if req.NormalizationMethod != "" {
		profile.NormalizationMethod = NormalizationMethod(strings.ToUpper(strings.TrimSpace(req.NormalizationMethod)))
	}
	bindings, err := s.buildBindings(ctx, req.Rules)
	if err != nil {
		return nil, err
	}
	profile.Rules = bindings

	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("persist profile: %w", err)
	}
	return profile, nil
}

func (s *service) GetProfile(ctx context.Context, id string) (*PriorityProfile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListProfiles(ctx context.Context) ([]*PriorityProfile, error) {
	return s.repo.List(ctx)
}

func (s *service) UpdateProfile(ctx context.Context, id string, req SaveProfileRequest) (*PriorityProfile, error) {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("profile not found: %w", err)
	}
	if req.Name != "" {
		profile.Name = req.Name
	}
	if req.IsActive != nil {
		profile.IsActive = *req.IsActive
	}
	profile.IsDefault = req.IsDefault
	profile.Normalize = req.Normalize
	if req.NormalizationMethod != "" {
		profile.NormalizationMethod = NormalizationMethod(strings.ToUpper(strings.TrimSpace(req.NormalizationMethod)))
	}
	if len(req.Rules) > 0 {
		bindings, err := s.buildBindings(ctx, req.Rules)
		if err != nil {
			return nil, err
		}
		profile.Rules = bindings
	}

	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *service) DeactivateProfile(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return fmt.Errorf("profile not found: %w", err)
	}
	return s.repo.Deactivate(ctx, id)
}

// buildBindings resolves and validates the referenced rules. A profile may
// only bind active rules; a dangling or disabled reference is a configuration
// error, not something to silently skip at scoring time.
func (s *service) buildBindings(ctx context.Context, reqs []ProfileRuleRequest) ([]ProfileRule, error) {
	var bindings []ProfileRule
	for i, req := range reqs {
		ruleID, err := uuid.Parse(req.RuleID)
		if err != nil {
			return nil, &rules.ConfigError{Field: "rules", Message: fmt.Sprintf("entry %d has invalid rule_id", i)}
		}
		rule, err := s.rules.GetByID(ctx, ruleID.String())
		if err != nil {
			return nil, &rules.ConfigError{Field: "rules", Message: fmt.Sprintf("rule %s not found", ruleID)}
		}
		if !rule.IsActive {
			return nil, &rules.ConfigError{Field: "rules", Message: fmt.Sprintf("rule %s is inactive", ruleID)}
		}
		if req.WeightOverride != nil && *req.WeightOverride <= 0 {
			return nil, &rules.ConfigError{Field: "rules", Message: fmt.Sprintf("entry %d weight_override must be positive", i)}
		}
		bindings = append(bindings, ProfileRule{
			RuleID:         ruleID,
			Position:       i,
			WeightOverride: req.WeightOverride,
			IsRequired:     req.IsRequired,
			FallbackScore:  req.FallbackScore,
		})
	}
	return bindings, nil
}

func validateProfile(profile *PriorityProfile) error {
	if strings.TrimSpace(profile.Name) == "" {
		return &rules.ConfigError{Field: "name", Message: "is required"}
	}
	if len(profile.Rules) == 0 {
		return &rules.ConfigError{Field: "rules", Message: "must contain at least one rule"}
	}
	switch profile.NormalizationMethod {
	case NormalizationMinMax:
	default:
		return &rules.ConfigError{Field: "normalization_method", Message: fmt.Sprintf("unknown value %q", profile.NormalizationMethod)}
	}
	seen := make(map[uuid.UUID]bool, len(profile.Rules))
	for _, b := range profile.Rules {
		if seen[b.RuleID] {
			return &rules.ConfigError{Field: "rules", Message: fmt.Sprintf("rule %s bound twice", b.RuleID)}
		}
		seen[b.RuleID] = true
	}
	return nil
}
