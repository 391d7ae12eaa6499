package rebalance

import (
	"sync"

	"github.com/google/uuid"
)

// Guard serializes rebalance passes per queue within this process. Each
// queue has its own ownership token, so different queues rebalance
// concurrently while any single queue never has two passes in flight.
type Guard struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func NewGuard() *Guard {
	return &Guard{held: make(map[uuid.UUID]struct{})}
}

// TryAcquire claims the queue's token without blocking. It returns false
// when a pass is already running, in which case the trigger coalesces into
// a no-op.
func (g *Guard) TryAcquire(queueID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[queueID]; busy {
		return false
	}
	g.held[queueID] = struct{}{}
	return true
}

func (g *Guard) Release(queueID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, queueID)
}
