package snapshot

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type postgresProvider struct{ db *sql.DB }

// NewPostgresProvider reads collaborator-owned tables. Every statement here is
// a SELECT; the engine never writes business entities.
func NewPostgresProvider(db *sql.DB) Provider { return &postgresProvider{db: db} }

func (p *postgresProvider) GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o := &Order{}
	var customerID sql.NullString
	var scheduledAt sql.NullTime
	var manual sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT id, total, scheduled_at, manual_priority, party_size, customer_id
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.Total, &scheduledAt, &manual, &o.PartySize, &customerID)
	if err != nil {
		return nil, err
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time
		o.ScheduledAt = &t
	}
	o.ManualPriority = ManualNormal
	if manual.Valid && manual.String != "" {
		o.ManualPriority = ManualPriority(manual.String)
	}
	if customerID.Valid {
		uid, err := uuid.Parse(customerID.String)
		if err == nil {
			o.CustomerID = &uid
		}
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, quantity, prep_minutes
		FROM order_items WHERE order_id=$1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item OrderItem
		var prep sql.NullFloat64
		if err := rows.Scan(&item.ID, &item.Quantity, &prep); err != nil {
			return nil, err
		}
		if prep.Valid {
			v := prep.Float64
			item.PrepMinutes = &v
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

func (p *postgresProvider) GetCustomer(ctx context.Context, customerID uuid.UUID) (*Customer, error) {
	c := &Customer{}
	err := p.db.QueryRowContext(ctx,
		`SELECT id, loyalty_tier FROM customers WHERE id=$1`, customerID).
		Scan(&c.ID, &c.LoyaltyTier)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *postgresProvider) QueueExists(ctx context.Context, queueID uuid.UUID) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM fulfillment_queues WHERE id=$1)`, queueID).
		Scan(&exists)
	return exists, err
}

func (p *postgresProvider) ListQueuedItems(ctx context.Context, queueID uuid.UUID) ([]QueueItem, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT order_id, queue_id, sequence_number, status, enqueued_at
		FROM queue_items WHERE queue_id=$1 AND status=$2
		ORDER BY sequence_number ASC`, queueID, ItemQueued)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QueueItem
	for rows.Next() {
		var item QueueItem
		if err := rows.Scan(&item.OrderID, &item.QueueID, &item.SequenceNumber, &item.Status, &item.EnqueuedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
