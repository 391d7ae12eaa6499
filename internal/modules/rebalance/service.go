package rebalance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fulfilq/priority-engine/internal/modules/queueconfig"
	"github.com/fulfilq/priority-engine/internal/modules/scoring"
	"github.com/fulfilq/priority-engine/internal/modules/snapshot"
	"github.com/fulfilq/priority-engine/internal/platform/lockx"
	"github.com/fulfilq/priority-engine/internal/platform/logx"
	"github.com/fulfilq/priority-engine/internal/platform/metricsx"
)

// leaseTTL bounds how long a crashed process can hold a queue's rebalance
// lease before another process may take over.
const leaseTTL = 2 * time.Minute

// defaultMaxPositionChange caps per-pass movement for queues without a
// QueuePriorityConfig. Repeated passes still converge on the score ranking.
const defaultMaxPositionChange = 3

// Result reports the outcome of one rebalance pass.
type Result struct {
	QueueID        uuid.UUID `json:"queue_id"`
	Reordered      bool      `json:"reordered"`
	ItemsReordered int       `json:"items_reordered"`
	Skipped        bool      `json:"skipped,omitempty"` // a pass was already in flight
}

// Aborted wraps any failure before the commit step. Nothing was persisted;
// the pass is safe to retry on the next tick.
type Aborted struct {
	QueueID uuid.UUID
	Err     error
}

func (e *Aborted) Error() string {
	return fmt.Sprintf("rebalance of queue %s aborted: %v", e.QueueID, e.Err)
}

func (e *Aborted) Unwrap() error { return e.Err }

// Service runs constrained rebalance passes over fulfillment queues.
type Service interface {
	// RebalanceQueue runs one pass for the queue. Concurrent triggers for
	// the same queue coalesce: the extra caller gets a skipped Result.
	RebalanceQueue(ctx context.Context, queueID uuid.UUID) (*Result, error)
}

type service struct {
	repo      Repository
	snapshots snapshot.Provider
	configs   queueconfig.Repository
	scores    scoring.Service
	guard     *Guard
	redis     *redis.Client // nil disables the cross-process lease
	logger    logx.Logger
	now       func() time.Time
}

// Option configures the rebalance service.
type Option func(*service)

// WithRedis enables the cross-process rebalance lease.
func WithRedis(client *redis.Client) Option {
	return func(s *service) { s.redis = client }
}

// WithClock replaces the service's time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(
	repo Repository,
	snapshots snapshot.Provider,
	configs queueconfig.Repository,
	scores scoring.Service,
	logger logx.Logger,
	opts ...Option,
) Service {
	s := &service{
		repo:      repo,
		snapshots: snapshots,
		configs:   configs,
		scores:    scores,
		guard:     NewGuard(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) RebalanceQueue(ctx context.Context, queueID uuid.UUID) (*Result, error) {
	exists, err := s.snapshots.QueueExists(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("check queue: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("queue %s: %w", queueID, scoring.ErrNotFound)
	}

	if !s.guard.TryAcquire(queueID) {
		return &Result{QueueID: queueID, Skipped: true}, nil
	}
	defer s.guard.Release(queueID)

	var lease *lockx.Lease
	if s.redis != nil {
		var held bool
		lease, held, err = lockx.Acquire(ctx, s.redis, "rebalance:queue:"+queueID.String(), leaseTTL)
		if err != nil {
			return nil, &Aborted{QueueID: queueID, Err: fmt.Errorf("acquire lease: %w", err)}
		}
		if !held {
			return &Result{QueueID: queueID, Skipped: true}, nil
		}
		defer func() { _ = lockx.Release(context.WithoutCancel(ctx), s.redis, lease) }()
	}

	start := time.Now()
	result, err := s.run(ctx, queueID)
	metricsx.ObserveRebalanceDuration(time.Since(start))
	if err != nil {
		metricsx.IncRebalancePass("aborted")
		s.logger.Warn(ctx, "rebalance_aborted", "rebalance pass aborted",
			slog.String("queue_id", queueID.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if result.Reordered {
		metricsx.IncRebalancePass("reordered")
		metricsx.AddItemsReordered(result.ItemsReordered)
		s.logger.Info(ctx, "rebalance_committed", "queue reordered",
			slog.String("queue_id", queueID.String()),
			slog.Int("items_reordered", result.ItemsReordered),
		)
	} else {
		metricsx.IncRebalancePass("noop")
	}
	return result, nil
}

// run executes the Computing -> Reordering -> Committing phases. Context is
// checked between phases so cancellation lands before the commit, never
// during it.
func (s *service) run(ctx context.Context, queueID uuid.UUID) (*Result, error) {
	items, err := s.snapshots.ListQueuedItems(ctx, queueID)
	if err != nil {
		return nil, &Aborted{QueueID: queueID, Err: fmt.Errorf("load queue items: %w", err)}
	}
	metricsx.SetQueueDepth(queueID.String(), len(items))
	if len(items) < 2 {
		return &Result{QueueID: queueID}, nil
	}

	cfg, err := s.configs.GetByQueue(ctx, queueID.String())
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, &Aborted{QueueID: queueID, Err: fmt.Errorf("load queue config: %w", err)}
		}
		cfg = nil
	}
	// Without a config the pass still caps movement at a conservative
	// default; an unconfigured queue must not reshuffle end to end in one
	// tick. With a config, the cap and staleness window come from it.
	maxMove := defaultMaxPositionChange
	staleness := time.Minute
	if cfg != nil {
		maxMove = cfg.MaxPositionChange
		if cfg.RebalanceIntervalSeconds > 0 {
			staleness = time.Duration(cfg.RebalanceIntervalSeconds) * time.Second
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, &Aborted{QueueID: queueID, Err: err}
	}

	planItems, err := s.collectScores(ctx, queueID, items, staleness)
	if err != nil {
		return nil, &Aborted{QueueID: queueID, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, &Aborted{QueueID: queueID, Err: err}
	}

	plan := Plan(planItems, maxMove)
	if plan.ItemsReordered == 0 {
		return &Result{QueueID: queueID}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, &Aborted{QueueID: queueID, Err: err}
	}

	// Committing: runs to completion even if the caller has given up.
	if err := s.repo.ApplyAssignments(context.WithoutCancel(ctx), queueID, plan.Assignments); err != nil {
		return nil, &Aborted{QueueID: queueID, Err: fmt.Errorf("commit ordering: %w", err)}
	}
	return &Result{QueueID: queueID, Reordered: true, ItemsReordered: plan.ItemsReordered}, nil
}

// collectScores fetches the latest normalized score for every queued item,
// recomputing stale or missing ones. An item whose computation fails keeps
// its last persisted score, or ranks last when it never had one; one bad
// order must not starve the rest of the queue of rebalancing.
func (s *service) collectScores(ctx context.Context, queueID uuid.UUID, items []snapshot.QueueItem, staleness time.Duration) ([]Item, error) {
	now := s.now()
	out := make([]Item, 0, len(items))
	for _, item := range items {
		score, err := s.scores.GetScore(ctx, queueID, item.OrderID)
		if err != nil && !errors.Is(err, scoring.ErrNotFound) {
			return nil, fmt.Errorf("load score for order %s: %w", item.OrderID, err)
		}
		if score == nil || now.Sub(score.ComputedAt) > staleness {
			fresh, err := s.scores.ComputePriority(ctx, item.OrderID, queueID)
			if err != nil {
				s.logger.Warn(ctx, "rebalance_score_unavailable", "using stale or floor score",
					slog.String("queue_id", queueID.String()),
					slog.String("order_id", item.OrderID.String()),
					slog.String("error", err.Error()),
				)
			} else {
				score = fresh
			}
		}
		normalized := 0.0
		if score != nil {
			normalized = score.NormalizedScore
		}
		out = append(out, Item{
			OrderID:  item.OrderID,
			Sequence: item.SequenceNumber,
			Score:    normalized,
		})
	}
	return out, nil
}
