package scoring

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for computed priority scores.
type Repository interface {
	// Upsert creates or overwrites the score for an (order, queue) pair.
	Upsert(ctx context.Context, score *OrderPriorityScore) error

	// Get retrieves the latest score for an (order, queue) pair.
	Get(ctx context.Context, queueID uuid.UUID, orderID uuid.UUID) (*OrderPriorityScore, error)

	// ListByQueue returns all persisted scores for a queue, highest
	// normalized score first.
	ListByQueue(ctx context.Context, queueID uuid.UUID) ([]*OrderPriorityScore, error)
}
