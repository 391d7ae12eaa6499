package queueconfig

import "context"

// Repository defines data access for queue priority configs.
type Repository interface {
	// Upsert creates or overwrites the config for a queue.
	Upsert(ctx context.Context, cfg *QueuePriorityConfig) error

	// GetByQueue retrieves the config for one queue.
	GetByQueue(ctx context.Context, queueID string) (*QueuePriorityConfig, error)

	// ListRebalanceEnabled returns every config with rebalancing turned on.
	ListRebalanceEnabled(ctx context.Context) ([]*QueuePriorityConfig, error)

	// Delete removes the config for a queue.
	Delete(ctx context.Context, queueID string) error
}
