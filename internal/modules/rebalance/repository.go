package rebalance

import (
	"context"

	"github.com/google/uuid"
)

// Repository commits new queue orderings.
type Repository interface {
	// ApplyAssignments writes the planned sequence numbers for a queue's
	// QUEUED items in one transaction. Readers observe either the old or
	// the new complete ordering, never a mix.
	ApplyAssignments(ctx context.Context, queueID uuid.UUID, assignments []Assignment) error
}
