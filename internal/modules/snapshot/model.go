package snapshot

import (
	"time"

	"github.com/google/uuid"
)

// ManualPriority is the coarse priority flag an operator can set on an order.
// It only drives scoring when a queue has no priority profile configured.
type ManualPriority string

const (
	ManualLow    ManualPriority = "LOW"
	ManualNormal ManualPriority = "NORMAL"
	ManualHigh   ManualPriority = "HIGH"
	ManualUrgent ManualPriority = "URGENT"
)

// ItemStatus is the lifecycle state of a queue item. The engine only ever
// mutates the sequence number of QUEUED items.
type ItemStatus string

const (
	ItemQueued     ItemStatus = "QUEUED"
	ItemInProgress ItemStatus = "IN_PROGRESS"
	ItemDone       ItemStatus = "DONE"
)

// Order is the engine's read-only view of an order. It carries only the
// fields the scoring algorithms consume.
type Order struct {
	ID             uuid.UUID      `json:"id"`
	Items          []OrderItem    `json:"items,omitempty"`
	Total          float64        `json:"total"`
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty"` // nil when the order has no delivery window
	ManualPriority ManualPriority `json:"manual_priority"`
	PartySize      int            `json:"party_size"`
	CustomerID     *uuid.UUID     `json:"customer_id,omitempty"` // nil for walk-in orders
}

// OrderItem is a single line item within an order snapshot.
type OrderItem struct {
	ID          uuid.UUID `json:"id"`
	Quantity    int       `json:"quantity"`
	PrepMinutes *float64  `json:"prep_minutes,omitempty"` // nil when the menu item has no prep estimate
}

// Customer is the engine's read-only view of a customer.
type Customer struct {
	ID          uuid.UUID `json:"id"`
	LoyaltyTier string    `json:"loyalty_tier"`
}

// QueueItem is one order's representation within a fulfillment queue.
type QueueItem struct {
	OrderID        uuid.UUID  `json:"order_id"`
	QueueID        uuid.UUID  `json:"queue_id"`
	SequenceNumber int        `json:"sequence_number"`
	Status         ItemStatus `json:"status"`
	EnqueuedAt     time.Time  `json:"enqueued_at"`
}
