package queueconfig

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fulfilq/priority-engine/internal/modules/profiles"
	"github.com/fulfilq/priority-engine/internal/modules/rules"
)

// Service defines queue priority config management.
type Service interface {
	SaveConfig(ctx context.Context, queueID string, req SaveConfigRequest) (*QueuePriorityConfig, error)
	GetConfig(ctx context.Context, queueID string) (*QueuePriorityConfig, error)
	ListRebalanceEnabled(ctx context.Context) ([]*QueuePriorityConfig, error)
	DeleteConfig(ctx context.Context, queueID string) error
}

type service struct {
	repo     Repository
	profiles profiles.Repository
}

func NewService(repo Repository, profileRepo profiles.Repository) Service {
	return &service{repo: repo, profiles: profileRepo}
}

func (s *service) SaveConfig(ctx context.Context, queueID string, req SaveConfigRequest) (*QueuePriorityConfig, error) {
	qid, err := uuid.Parse(queueID)
	if err != nil {
		return nil, fmt.Errorf("invalid queue_id: %w", err)
	}

	cfg := &QueuePriorityConfig{
		QueueID:                  qid,
		VipBoost:                 req.VipBoost,
		VipTierFloor:             req.VipTierFloor,
		DelayedBoost:             req.DelayedBoost,
		LargePartyBoost:          req.LargePartyBoost,
		LargePartyThreshold:      req.LargePartyThreshold,
		RebalanceEnabled:         req.RebalanceEnabled,
		RebalanceIntervalSeconds: req.RebalanceIntervalSeconds,
		MaxPositionChange:        req.MaxPositionChange,
		PeakWindows:              req.PeakWindows,
		PeakMultiplier:           req.PeakMultiplier,
	}
	if req.ProfileID != "" {
		pid, err := uuid.Parse(req.ProfileID)
		if err != nil {
			return nil, &rules.ConfigError{Field: "profile_id", Message: "is not a valid uuid"}
		}
		profile, err := s.profiles.GetByID(ctx, pid.String())
		if err != nil {
			return nil, &rules.ConfigError{Field: "profile_id", Message: fmt.Sprintf("profile %s not found", pid)}
		}
		if !profile.IsActive {
			return nil, &rules.ConfigError{Field: "profile_id", Message: fmt.Sprintf("profile %s is inactive", pid)}
		}
		cfg.ProfileID = &pid
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, fmt.Errorf("persist queue config: %w", err)
	}
	return cfg, nil
}

func (s *service) GetConfig(ctx context.Context, queueID string) (*QueuePriorityConfig, error) {
	return s.repo.GetByQueue(ctx, queueID)
}

func (s *service) ListRebalanceEnabled(ctx context.Context) ([]*QueuePriorityConfig, error) {
	return s.repo.ListRebalanceEnabled(ctx)
}

func (s *service) DeleteConfig(ctx context.Context, queueID string) error {
	if _, err := s.repo.GetByQueue(ctx, queueID); err != nil {
		return fmt.Errorf("queue config not found: %w", err)
	}
	return s.repo.Delete(ctx, queueID)
}

func validateConfig(cfg *QueuePriorityConfig) error {
	if cfg.VipBoost < 0 || cfg.DelayedBoost < 0 || cfg.LargePartyBoost < 0 {
		return &rules.ConfigError{Field: "boosts", Message: "must be non-negative"}
	}
	if cfg.MaxPositionChange < 0 {
		return &rules.ConfigError{Field: "max_position_change", Message: "must be non-negative"}
	}
	if cfg.RebalanceEnabled && cfg.RebalanceIntervalSeconds <= 0 {
		return &rules.ConfigError{Field: "rebalance_interval_seconds", Message: "must be positive when rebalancing is enabled"}
	}
	if len(cfg.PeakWindows) > 0 && cfg.PeakMultiplier <= 1 {
		return &rules.ConfigError{Field: "peak_multiplier", Message: "must be > 1 when peak windows are configured"}
	}
	for i, w := range cfg.PeakWindows {
		if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 24 {
			return &rules.ConfigError{Field: "peak_windows", Message: fmt.Sprintf("window %d has hours out of range", i)}
		}
	}
	return nil
}
