package scoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fulfilq/priority-engine/internal/modules/profiles"
	"github.com/fulfilq/priority-engine/internal/modules/queueconfig"
	"github.com/fulfilq/priority-engine/internal/modules/rules"
	"github.com/fulfilq/priority-engine/internal/modules/snapshot"
	"github.com/fulfilq/priority-engine/internal/platform/cachex"
	"github.com/fulfilq/priority-engine/internal/platform/logx"
	"github.com/fulfilq/priority-engine/internal/platform/metricsx"
)

// ErrNotFound is returned when a referenced order or queue does not exist.
var ErrNotFound = errors.New("not found")

const scoreCacheTTL = 30 * time.Second

// Service computes, persists, and reports priority scores.
type Service interface {
	// ComputePriority runs the full scoring pipeline for one (order, queue)
	// pair and persists the result, overwriting any previous score.
	ComputePriority(ctx context.Context, orderID uuid.UUID, queueID uuid.UUID) (*OrderPriorityScore, error)

	// GetScore returns the latest persisted score, serving from cache when
	// possible, or ErrNotFound if none has been computed.
	GetScore(ctx context.Context, queueID uuid.UUID, orderID uuid.UUID) (*OrderPriorityScore, error)

	// ListQueueScores returns every persisted score for a queue, highest
	// normalized score first.
	ListQueueScores(ctx context.Context, queueID uuid.UUID) ([]*OrderPriorityScore, error)

	// FairnessReport measures how evenly wait time is spread across a
	// queue's pending items enqueued within the window.
	FairnessReport(ctx context.Context, queueID uuid.UUID, window time.Duration) (*FairnessReport, error)
}

type service struct {
	scores    Repository
	rules     rules.Repository
	profiles  profiles.Repository
	configs   queueconfig.Repository
	snapshots snapshot.Provider
	cache     *cachex.Client
	tiers     TierThresholds
	logger    logx.Logger
	now       func() time.Time
}

// Option configures the scoring service.
type Option func(*service)

// WithClock replaces the service's time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithTierThresholds overrides the default tier boundaries.
func WithTierThresholds(t TierThresholds) Option {
	return func(s *service) { s.tiers = t }
}

func NewService(
	scores Repository,
	ruleRepo rules.Repository,
	profileRepo profiles.Repository,
	configRepo queueconfig.Repository,
	snapshots snapshot.Provider,
	cache *cachex.Client,
	logger logx.Logger,
	opts ...Option,
) Service {
	s := &service{
		scores:    scores,
		rules:     ruleRepo,
		profiles:  profileRepo,
		configs:   configRepo,
		snapshots: snapshots,
		cache:     cache,
		tiers:     DefaultTierThresholds(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) ComputePriority(ctx context.Context, orderID uuid.UUID, queueID uuid.UUID) (*OrderPriorityScore, error) {
	start := time.Now()
	score, err := s.compute(ctx, orderID, queueID)
	metricsx.ObserveScoreComputeLatency(time.Since(start))
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrNotFound) {
			outcome = "not_found"
		}
		metricsx.IncScoreComputation(outcome)
		s.logger.Warn(ctx, "score_compute_failed", "priority computation failed",
			slog.String("order_id", orderID.String()),
			slog.String("queue_id", queueID.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	metricsx.IncScoreComputation("ok")
	return score, nil
}

func (s *service) compute(ctx context.Context, orderID uuid.UUID, queueID uuid.UUID) (*OrderPriorityScore, error) {
	exists, err := s.snapshots.QueueExists(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("check queue: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("queue %s: %w", queueID, ErrNotFound)
	}

	order, err := s.snapshots.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("load order: %w", err)
	}

	var customer *snapshot.Customer
	if order.CustomerID != nil {
		customer, err = s.snapshots.GetCustomer(ctx, *order.CustomerID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load customer: %w", err)
		}
		// A dangling customer reference degrades to walk-in scoring.
	}

	cfg, err := s.configs.GetByQueue(ctx, queueID.String())
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load queue config: %w", err)
		}
		cfg = nil
	}

	now := s.now()
	comp, err := s.composeScore(ctx, cfg, order, customer, now)
	if err != nil {
		return nil, err
	}

	normalized := comp.NormalizedScore
	var boosts []string
	if cfg != nil {
		normalized, boosts = queueconfig.ApplyModifiers(normalized, cfg, order, customer, now)
	}

	score := &OrderPriorityScore{
		OrderID:         orderID,
		QueueID:         queueID,
		TotalScore:      comp.TotalScore,
		NormalizedScore: normalized,
		Components:      comp.Components,
		Boosts:          boosts,
		PriorityTier:    s.tiers.Classify(normalized),
		ProfileUsed:     comp.ProfileUsed,
		ComputedAt:      now.UTC(),
	}
	if err := s.scores.Upsert(ctx, score); err != nil {
		return nil, fmt.Errorf("persist score: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, scoreCacheKey(queueID, orderID), score, scoreCacheTTL)
	}
	return score, nil
}

// composeScore picks the profile for the queue: the config's explicit profile
// first, then the platform-wide default profile, then the manual-priority
// fallback mapping.
func (s *service) composeScore(ctx context.Context, cfg *queueconfig.QueuePriorityConfig, order *snapshot.Order, customer *snapshot.Customer, now time.Time) (*profiles.Composition, error) {
	var profile *profiles.PriorityProfile
	var err error

	if cfg != nil && cfg.ProfileID != nil {
		profile, err = s.profiles.GetByID(ctx, cfg.ProfileID.String())
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("load profile: %w", err)
			}
			profile = nil
		}
	}
	if profile == nil {
		profile, err = s.profiles.GetDefault(ctx)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("load default profile: %w", err)
			}
			profile = nil
		}
	}
	if profile == nil || !profile.IsActive {
		return profiles.ComposeDefault(order), nil
	}

	active, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	ruleSet := make(map[uuid.UUID]*rules.PriorityRule, len(active))
	for _, rule := range active {
		ruleSet[rule.ID] = rule
	}

	return profiles.Compose(profile, ruleSet, rules.EvalInput{
		Order:    order,
		Customer: customer,
		Now:      now,
	})
}

func (s *service) GetScore(ctx context.Context, queueID uuid.UUID, orderID uuid.UUID) (*OrderPriorityScore, error) {
	if s.cache != nil {
		var cached OrderPriorityScore
		if ok, err := s.cache.GetJSON(ctx, scoreCacheKey(queueID, orderID), &cached); err == nil && ok {
			return &cached, nil
		}
	}
	score, err := s.scores.Get(ctx, queueID, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return score, nil
}

func (s *service) ListQueueScores(ctx context.Context, queueID uuid.UUID) ([]*OrderPriorityScore, error) {
	exists, err := s.snapshots.QueueExists(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("queue %s: %w", queueID, ErrNotFound)
	}
	return s.scores.ListByQueue(ctx, queueID)
}

func (s *service) FairnessReport(ctx context.Context, queueID uuid.UUID, window time.Duration) (*FairnessReport, error) {
	exists, err := s.snapshots.QueueExists(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("queue %s: %w", queueID, ErrNotFound)
	}

	items, err := s.snapshots.ListQueuedItems(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("load queue items: %w", err)
	}

	now := s.now()
	var waits []time.Duration
	for _, item := range items {
		wait := now.Sub(item.EnqueuedAt)
		if wait < 0 {
			continue
		}
		if window > 0 && wait > window {
			continue
		}
		waits = append(waits, wait)
	}

	return &FairnessReport{
		QueueID:       queueID,
		FairnessIndex: FairnessIndex(waits),
		SampleSize:    len(waits),
	}, nil
}

func scoreCacheKey(queueID uuid.UUID, orderID uuid.UUID) string {
	return "priority:score:" + queueID.String() + ":" + orderID.String()
}
