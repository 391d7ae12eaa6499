package rebalance

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

// sequenceShift moves sequences out of range during the two-step renumber so
// the unique (queue_id, sequence_number) index never sees a transient clash.
const sequenceShift = 1000000

func (r *postgresRepo) ApplyAssignments(ctx context.Context, queueID uuid.UUID, assignments []Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range assignments {
		res, err := tx.ExecContext(ctx, `
			UPDATE queue_items SET sequence_number=$3
			WHERE queue_id=$1 AND order_id=$2 AND status='QUEUED'`,
			queueID, a.OrderID, a.ToSequence+sequenceShift)
		if err != nil {
			return fmt.Errorf("shift sequence for order %s: %w", a.OrderID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		// The item left the queue between planning and commit; aborting
		// keeps the pass atomic and the next tick replans.
		if n == 0 {
			return fmt.Errorf("order %s no longer queued in %s", a.OrderID, queueID)
		}
	}
	for _, a := range assignments {
		if _, err := tx.ExecContext(ctx, `
			UPDATE queue_items SET sequence_number=$3
			WHERE queue_id=$1 AND order_id=$2 AND status='QUEUED'`,
			queueID, a.OrderID, a.ToSequence); err != nil {
			return fmt.Errorf("assign sequence for order %s: %w", a.OrderID, err)
		}
	}
	return tx.Commit()
}
