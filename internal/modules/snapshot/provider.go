package snapshot

import (
	"context"

	"github.com/google/uuid"
)

// Provider supplies read-only snapshots of collaborator-owned entities.
// The engine treats these views as valid only for the duration of a single
// scoring or rebalance invocation; nothing is cached across calls.
type Provider interface {
	// GetOrder retrieves an order with its line items.
	GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)

	// GetCustomer retrieves a customer's loyalty data.
	GetCustomer(ctx context.Context, customerID uuid.UUID) (*Customer, error)

	// QueueExists reports whether a fulfillment queue is known.
	QueueExists(ctx context.Context, queueID uuid.UUID) (bool, error)

	// ListQueuedItems returns the QUEUED items of a queue ordered by
	// their current sequence number.
	ListQueuedItems(ctx context.Context, queueID uuid.UUID) ([]QueueItem, error)
}
