package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service defines priority rule management.
type Service interface {
	CreateRule(ctx context.Context, req CreateRuleRequest) (*PriorityRule, error)
	GetRule(ctx context.Context, id string) (*PriorityRule, error)
	ListRules(ctx context.Context) ([]*PriorityRule, error)
	ListActiveRules(ctx context.Context) ([]*PriorityRule, error)
	UpdateRule(ctx context.Context, id string, req CreateRuleRequest) (*PriorityRule, error)
	DeactivateRule(ctx context.Context, id string) error
}

type service struct{ repo Repository }

func NewService(repo Repository) Service { return &service{repo: repo} }

func (s *service) CreateRule(ctx context.Context, req CreateRuleRequest) (*PriorityRule, error) {
	rule := &PriorityRule{
		ID:            uuid.New(),
		Name:          req.Name,
		AlgorithmType: AlgorithmType(strings.ToUpper(strings.TrimSpace(req.AlgorithmType))),
		IsActive:      true,
		Weight:        req.Weight,
		MinScore:      req.MinScore,
		MaxScore:      req.MaxScore,
		Parameters:    req.Parameters,
		ScoreShape:    ShapeLinear,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("persist rule: %w", err)
	}
	return rule, nil
}

func (s *service) GetRule(ctx context.Context, id string) (*PriorityRule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListRules(ctx context.Context) ([]*PriorityRule, error) {
	return s.repo.List(ctx)
}

func (s *service) ListActiveRules(ctx context.Context) ([]*PriorityRule, error) {
	return s.repo.ListActive(ctx)
}

func (s *service) UpdateRule(ctx context.Context, id string, req CreateRuleRequest) (*PriorityRule, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("rule not found: %w", err)
	}
	if req.Name != "" {
		rule.Name = req.Name
	}
	if req.AlgorithmType != "" {
		rule.AlgorithmType = AlgorithmType(strings.ToUpper(strings.TrimSpace(req.AlgorithmType)))
	}
	if req.Weight != 0 {
		rule.Weight = req.Weight
	}
	if req.MinScore != 0 || req.MaxScore != 0 {
		rule.MinScore = req.MinScore
		rule.MaxScore = req.MaxScore
	}
	if len(req.Parameters) > 0 {
		rule.Parameters = req.Parameters
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *service) DeactivateRule(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return fmt.Errorf("rule not found: %w", err)
	}
	return s.repo.Deactivate(ctx, id)
}

// validateRule rejects bad configurations at save time rather than letting
// them surface as evaluation failures later.
func validateRule(rule *PriorityRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return &ConfigError{Field: "name", Message: "is required"}
	}
	if rule.Weight <= 0 {
		return &ConfigError{Field: "weight", Message: "must be positive"}
	}
	if rule.MinScore > rule.MaxScore {
		return &ConfigError{Field: "min_score", Message: "must not exceed max_score"}
	}

	switch rule.AlgorithmType {
	case AlgorithmPreparationTime:
		var p PreparationTimeParams
		if err := decodeStrict(rule.Parameters, &p); err != nil {
			return &ConfigError{Field: "parameters", Message: err.Error()}
		}
		if p.BaseMinutes < 0 || p.PenaltyPerMinute < 0 {
			return &ConfigError{Field: "parameters", Message: "base_minutes and penalty_per_minute must be non-negative"}
		}
	case AlgorithmDeliveryWindow:
		var p DeliveryWindowParams
		if err := decodeStrict(rule.Parameters, &p); err != nil {
			return &ConfigError{Field: "parameters", Message: err.Error()}
		}
		if p.GraceMinutes <= 0 || p.CriticalMinutes <= p.GraceMinutes {
			return &ConfigError{Field: "parameters", Message: "grace_minutes must be > 0 and < critical_minutes"}
		}
	case AlgorithmVipStatus:
		var p VipStatusParams
		if err := decodeStrict(rule.Parameters, &p); err != nil {
			return &ConfigError{Field: "parameters", Message: err.Error()}
		}
		if len(p.TierScores) == 0 {
			return &ConfigError{Field: "parameters", Message: "tier_scores must not be empty"}
		}
	case AlgorithmOrderValue:
		var p OrderValueParams
		if err := decodeStrict(rule.Parameters, &p); err != nil {
			return &ConfigError{Field: "parameters", Message: err.Error()}
		}
		if p.MaxValue <= p.MinValue {
			return &ConfigError{Field: "parameters", Message: "max_value must be > min_value"}
		}
	default:
		return &ConfigError{Field: "algorithm_type", Message: fmt.Sprintf("unknown value %q", rule.AlgorithmType)}
	}
	return nil
}

func decodeStrict(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		return fmt.Errorf("are required")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("are malformed: %v", err)
	}
	return nil
}
