package rebalance

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fulfilq/priority-engine/internal/modules/queueconfig"
	"github.com/fulfilq/priority-engine/internal/modules/scoring"
	"github.com/fulfilq/priority-engine/internal/modules/snapshot"
	"github.com/fulfilq/priority-engine/internal/platform/logx"
)

// ── In-memory fakes ─────────────────────────────────────

type fakeProvider struct {
	queues map[uuid.UUID]bool
	items  map[uuid.UUID][]snapshot.QueueItem
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		queues: make(map[uuid.UUID]bool),
		items:  make(map[uuid.UUID][]snapshot.QueueItem),
	}
}

func (f *fakeProvider) GetOrder(context.Context, uuid.UUID) (*snapshot.Order, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeProvider) GetCustomer(context.Context, uuid.UUID) (*snapshot.Customer, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeProvider) QueueExists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.queues[id], nil
}

func (f *fakeProvider) ListQueuedItems(_ context.Context, id uuid.UUID) ([]snapshot.QueueItem, error) {
	return f.items[id], nil
}

type fakeConfigs struct {
	configs map[string]*queueconfig.QueuePriorityConfig
}

func (f *fakeConfigs) Upsert(_ context.Context, cfg *queueconfig.QueuePriorityConfig) error {
	f.configs[cfg.QueueID.String()] = cfg
	return nil
}

func (f *fakeConfigs) GetByQueue(_ context.Context, queueID string) (*queueconfig.QueuePriorityConfig, error) {
	if cfg, ok := f.configs[queueID]; ok {
		return cfg, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeConfigs) ListRebalanceEnabled(context.Context) ([]*queueconfig.QueuePriorityConfig, error) {
	return nil, nil
}

func (f *fakeConfigs) Delete(context.Context, string) error { return nil }

// fakeScoring serves canned scores keyed by order; orders missing from the
// map fail to compute, exercising the floor-score path.
type fakeScoring struct {
	scores     map[uuid.UUID]float64
	computedAt time.Time
	computes   int
}

func (f *fakeScoring) ComputePriority(_ context.Context, orderID uuid.UUID, queueID uuid.UUID) (*scoring.OrderPriorityScore, error) {
	f.computes++
	value, ok := f.scores[orderID]
	if !ok {
		return nil, errors.New("snapshot unavailable")
	}
	return &scoring.OrderPriorityScore{
		OrderID:         orderID,
		QueueID:         queueID,
		NormalizedScore: value,
		ComputedAt:      f.computedAt,
	}, nil
}

func (f *fakeScoring) GetScore(context.Context, uuid.UUID, uuid.UUID) (*scoring.OrderPriorityScore, error) {
	return nil, scoring.ErrNotFound
}

func (f *fakeScoring) ListQueueScores(context.Context, uuid.UUID) ([]*scoring.OrderPriorityScore, error) {
	return nil, nil
}

func (f *fakeScoring) FairnessReport(context.Context, uuid.UUID, time.Duration) (*scoring.FairnessReport, error) {
	return nil, nil
}

type fakeRebalanceRepo struct {
	applied [][]Assignment
	fail    error
}

func (f *fakeRebalanceRepo) ApplyAssignments(_ context.Context, _ uuid.UUID, assignments []Assignment) error {
	if f.fail != nil {
		return f.fail
	}
	f.applied = append(f.applied, assignments)
	return nil
}

// ── Fixture ─────────────────────────────────────────────

type rebalanceFixture struct {
	provider *fakeProvider
	configs  *fakeConfigs
	scoring  *fakeScoring
	repo     *fakeRebalanceRepo
	service  Service
	queueID  uuid.UUID
	now      time.Time
}

func newRebalanceFixture(t *testing.T) *rebalanceFixture {
	t.Helper()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f := &rebalanceFixture{
		provider: newFakeProvider(),
		configs:  &fakeConfigs{configs: make(map[string]*queueconfig.QueuePriorityConfig)},
		scoring:  &fakeScoring{scores: make(map[uuid.UUID]float64), computedAt: now},
		repo:     &fakeRebalanceRepo{},
		queueID:  uuid.New(),
		now:      now,
	}
	f.provider.queues[f.queueID] = true
	f.service = NewService(
		f.repo, f.provider, f.configs, f.scoring,
		logx.New("rebalance-test", "test", "0.0.0", "error"),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func (f *rebalanceFixture) enqueue(seq int, score float64) uuid.UUID {
	orderID := uuid.New()
	f.provider.items[f.queueID] = append(f.provider.items[f.queueID], snapshot.QueueItem{
		OrderID:        orderID,
		QueueID:        f.queueID,
		SequenceNumber: seq,
		Status:         snapshot.ItemQueued,
		EnqueuedAt:     f.now.Add(-time.Hour),
	})
	f.scoring.scores[orderID] = score
	return orderID
}

// ── Tests ───────────────────────────────────────────────

func TestRebalanceQueueReorders(t *testing.T) {
	t.Parallel()

	f := newRebalanceFixture(t)
	f.enqueue(1, 20)
	f.enqueue(2, 50)
	urgent := f.enqueue(3, 95)

	result, err := f.service.RebalanceQueue(context.Background(), f.queueID)
	require.NoError(t, err)
	require.True(t, result.Reordered)
	require.False(t, result.Skipped)
	require.Equal(t, f.queueID, result.QueueID)

	require.Len(t, f.repo.applied, 1)
	assignments := f.repo.applied[0]
	require.Equal(t, urgent, assignments[0].OrderID)
	require.Equal(t, 1, assignments[0].ToSequence)
}

func TestRebalanceQueueNoop(t *testing.T) {
	t.Parallel()

	t.Run("already in score order", func(t *testing.T) {
		f := newRebalanceFixture(t)
		f.enqueue(1, 90)
		f.enqueue(2, 50)
		f.enqueue(3, 10)

		result, err := f.service.RebalanceQueue(context.Background(), f.queueID)
		require.NoError(t, err)
		require.False(t, result.Reordered)
		require.Empty(t, f.repo.applied, "no-op pass must not touch storage")
	})

	t.Run("fewer than two items", func(t *testing.T) {
		f := newRebalanceFixture(t)
		f.enqueue(1, 90)

		result, err := f.service.RebalanceQueue(context.Background(), f.queueID)
		require.NoError(t, err)
		require.False(t, result.Reordered)
	})

	t.Run("empty queue", func(t *testing.T) {
		f := newRebalanceFixture(t)
		result, err := f.service.RebalanceQueue(context.Background(), f.queueID)
		require.NoError(t, err)
		require.False(t, result.Reordered)
	})
}

func TestRebalanceQueueNotFound(t *testing.T) {
	t.Parallel()

	f := newRebalanceFixture(t)
	_, err := f.service.RebalanceQueue(context.Background(), uuid.New())
	require.ErrorIs(t, err, scoring.ErrNotFound)
}

func TestRebalanceQueueCoalesces(t *testing.T) {
	t.Parallel()

	f := newRebalanceFixture(t)
	f.enqueue(1, 20)
	f.enqueue(2, 90)

	// Simulate a pass already holding the queue's token.
	svc := f.service.(*service)
	require.True(t, svc.guard.TryAcquire(f.queueID))
	defer svc.guard.Release(f.queueID)

	result, err := f.service.RebalanceQueue(context.Background(), f.queueID)
	require.NoError(t, err)
	require.True(t, result.Skipped)
	require.Empty(t, f.repo.applied)
}

func TestRebalanceQueueHonorsConfigCap(t *testing.T) {
	t.Parallel()

	f := newRebalanceFixture(t)
	require.NoError(t, f.configs.Upsert(context.Background(), &queueconfig.QueuePriorityConfig{
		QueueID:           f.queueID,
		RebalanceEnabled:  true,
		MaxPositionChange: 1,
	}))
	for i, score := range []float64{10, 20, 30, 40, 50} {
		f.enqueue(i+1, score)
	}

	result, err := f.service.RebalanceQueue(context.Background(), f.queueID)
	require.NoError(t, err)
	require.True(t, result.Reordered)

	for _, a := range f.repo.applied[0] {
		moved := a.ToSequence - a.FromSequence
		if moved < 0 {
			moved = -moved
		}
		require.LessOrEqual(t, moved, 1)
	}
}

func TestRebalanceQueueDefaultCapWithoutConfig(t *testing.T) {
	t.Parallel()

	// No QueuePriorityConfig: movement still bounded by the built-in cap, so
	// a fully inverted queue cannot flip end to end in a single pass.
	f := newRebalanceFixture(t)
	for i, score := range []float64{10, 20, 30, 40, 50, 60, 70, 80} {
		f.enqueue(i+1, score)
	}

	result, err := f.service.RebalanceQueue(context.Background(), f.queueID)
	require.NoError(t, err)
	require.True(t, result.Reordered)

	require.Len(t, f.repo.applied, 1)
	for _, a := range f.repo.applied[0] {
		moved := a.ToSequence - a.FromSequence
		if moved < 0 {
			moved = -moved
		}
		require.LessOrEqual(t, moved, defaultMaxPositionChange)
	}
}

func TestRebalanceQueueFloorsFailedScores(t *testing.T) {
	t.Parallel()

	f := newRebalanceFixture(t)
	f.enqueue(1, 30)
	f.enqueue(2, 60)
	// Third item has no computable score; it ranks last at the floor.
	broken := uuid.New()
	f.provider.items[f.queueID] = append(f.provider.items[f.queueID], snapshot.QueueItem{
		OrderID:        broken,
		QueueID:        f.queueID,
		SequenceNumber: 0, // head of the queue before the pass
		Status:         snapshot.ItemQueued,
		EnqueuedAt:     f.now.Add(-time.Hour),
	})

	result, err := f.service.RebalanceQueue(context.Background(), f.queueID)
	require.NoError(t, err)
	require.True(t, result.Reordered)

	assignments := f.repo.applied[0]
	last := assignments[len(assignments)-1]
	require.Equal(t, broken, last.OrderID)
}

func TestRebalanceQueueAbortsOnCommitFailure(t *testing.T) {
	t.Parallel()

	f := newRebalanceFixture(t)
	f.repo.fail = errors.New("item left the queue mid-pass")
	f.enqueue(1, 10)
	f.enqueue(2, 90)

	_, err := f.service.RebalanceQueue(context.Background(), f.queueID)
	var aborted *Aborted
	require.ErrorAs(t, err, &aborted)
	require.Equal(t, f.queueID, aborted.QueueID)
}

func TestRebalanceQueueAbortsOnCancel(t *testing.T) {
	t.Parallel()

	f := newRebalanceFixture(t)
	f.enqueue(1, 10)
	f.enqueue(2, 90)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.RebalanceQueue(ctx, f.queueID)
	var aborted *Aborted
	require.ErrorAs(t, err, &aborted)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, f.repo.applied, "cancellation must land before the commit")
}
