package rebalance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fulfilq/priority-engine/internal/modules/queueconfig"
	"github.com/fulfilq/priority-engine/internal/platform/logx"
)

// configRefreshInterval is how often the scheduler re-reads queue configs to
// pick up new, changed, or disabled queues.
const configRefreshInterval = 30 * time.Second

// passTimeout is advisory: a pass that outlives it is logged as stuck and its
// context cancelled, but the commit phase always runs to completion.
const passTimeout = 5 * time.Minute

// Scheduler runs one timer loop per rebalance-enabled queue. Each loop ticks
// at the queue's configured interval; ticks that land while a pass is still
// running coalesce through the service's guard.
type Scheduler struct {
	service Service
	configs queueconfig.Repository
	logger  logx.Logger

	mu      sync.Mutex
	runners map[uuid.UUID]*queueRunner
}

type queueRunner struct {
	cancel   context.CancelFunc
	interval time.Duration
}

func NewScheduler(service Service, configs queueconfig.Repository, logger logx.Logger) *Scheduler {
	return &Scheduler{
		service: service,
		configs: configs,
		logger:  logger,
		runners: make(map[uuid.UUID]*queueRunner),
	}
}

// Run blocks until ctx is cancelled, keeping one runner alive per enabled
// queue config.
func (s *Scheduler) Run(ctx context.Context) {
	s.refresh(ctx)
	ticker := time.NewTicker(configRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context) {
	cfgs, err := s.configs.ListRebalanceEnabled(ctx)
	if err != nil {
		s.logger.Error(ctx, "scheduler_refresh_failed", "could not list queue configs",
			slog.String("error", err.Error()),
		)
		return
	}

	wanted := make(map[uuid.UUID]time.Duration, len(cfgs))
	for _, cfg := range cfgs {
		wanted[cfg.QueueID] = time.Duration(cfg.RebalanceIntervalSeconds) * time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for queueID, runner := range s.runners {
		interval, ok := wanted[queueID]
		if ok && interval == runner.interval {
			continue
		}
		runner.cancel()
		delete(s.runners, queueID)
	}
	for queueID, interval := range wanted {
		if _, ok := s.runners[queueID]; ok || interval <= 0 {
			continue
		}
		runCtx, cancel := context.WithCancel(ctx)
		s.runners[queueID] = &queueRunner{cancel: cancel, interval: interval}
		go s.runQueue(runCtx, queueID, interval)
	}
}

func (s *Scheduler) runQueue(ctx context.Context, queueID uuid.UUID, interval time.Duration) {
	s.logger.Info(ctx, "scheduler_queue_started", "rebalance timer started",
		slog.String("queue_id", queueID.String()),
		slog.Duration("interval", interval),
	)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, queueID)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, queueID uuid.UUID) {
	passCtx, cancel := context.WithTimeout(ctx, passTimeout)
	defer cancel()

	done := make(chan struct{})
	watchdog := time.AfterFunc(passTimeout, func() {
		select {
		case <-done:
		default:
			s.logger.Warn(ctx, "rebalance_stuck", "pass exceeded its advisory timeout",
				slog.String("queue_id", queueID.String()),
				slog.Duration("timeout", passTimeout),
			)
		}
	})
	defer watchdog.Stop()

	_, err := s.service.RebalanceQueue(passCtx, queueID)
	close(done)
	if err != nil && ctx.Err() == nil {
		// Already logged by the service with full detail; the next tick retries.
		return
	}
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for queueID, runner := range s.runners {
		runner.cancel()
		delete(s.runners, queueID)
	}
}
