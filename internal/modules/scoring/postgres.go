package scoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/fulfilq/priority-engine/internal/modules/profiles"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Upsert(ctx context.Context, score *OrderPriorityScore) error {
	components, err := json.Marshal(score.Components)
	if err != nil {
		return fmt.Errorf("encode score components: %w", err)
	}
	boosts, err := json.Marshal(score.Boosts)
	if err != nil {
		return fmt.Errorf("encode boosts: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO order_priority_scores
		  (order_id, queue_id, total_score, normalized_score, components, boosts,
		   priority_tier, profile_used, computed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (order_id, queue_id) DO UPDATE SET
		  total_score=EXCLUDED.total_score,
		  normalized_score=EXCLUDED.normalized_score,
		  components=EXCLUDED.components,
		  boosts=EXCLUDED.boosts,
		  priority_tier=EXCLUDED.priority_tier,
		  profile_used=EXCLUDED.profile_used,
		  computed_at=EXCLUDED.computed_at`,
		score.OrderID, score.QueueID, score.TotalScore, score.NormalizedScore,
		components, boosts, score.PriorityTier, score.ProfileUsed, score.ComputedAt)
	return err
}

func (r *postgresRepo) Get(ctx context.Context, queueID uuid.UUID, orderID uuid.UUID) (*OrderPriorityScore, error) {
	return scanScore(r.db.QueryRowContext(ctx, `
		SELECT order_id, queue_id, total_score, normalized_score, components, boosts,
		       priority_tier, profile_used, computed_at
		FROM order_priority_scores WHERE queue_id=$1 AND order_id=$2`, queueID, orderID))
}

func (r *postgresRepo) ListByQueue(ctx context.Context, queueID uuid.UUID) ([]*OrderPriorityScore, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, queue_id, total_score, normalized_score, components, boosts,
		       priority_tier, profile_used, computed_at
		FROM order_priority_scores WHERE queue_id=$1
		ORDER BY normalized_score DESC`, queueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*OrderPriorityScore
	for rows.Next() {
		score := &OrderPriorityScore{}
		var components, boosts []byte
		if err := rows.Scan(&score.OrderID, &score.QueueID, &score.TotalScore,
			&score.NormalizedScore, &components, &boosts,
			&score.PriorityTier, &score.ProfileUsed, &score.ComputedAt); err != nil {
			return nil, err
		}
		if err := decodeScoreJSON(score, components, boosts); err != nil {
			return nil, err
		}
		out = append(out, score)
	}
	return out, rows.Err()
}

// ── helpers ──────────────────────────────────────────────────────────────────

func scanScore(row *sql.Row) (*OrderPriorityScore, error) {
	score := &OrderPriorityScore{}
	var components, boosts []byte
	err := row.Scan(&score.OrderID, &score.QueueID, &score.TotalScore,
		&score.NormalizedScore, &components, &boosts,
		&score.PriorityTier, &score.ProfileUsed, &score.ComputedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeScoreJSON(score, components, boosts); err != nil {
		return nil, err
	}
	return score, nil
}

func decodeScoreJSON(score *OrderPriorityScore, components, boosts []byte) error {
	if len(components) > 0 {
		var c []profiles.RuleContribution
		if err := json.Unmarshal(components, &c); err != nil {
			return fmt.Errorf("decode score components: %w", err)
		}
		score.Components = c
	}
	if len(boosts) > 0 {
		var b []string
		if err := json.Unmarshal(boosts, &b); err != nil {
			return fmt.Errorf("decode boosts: %w", err)
		}
		score.Boosts = b
	}
	return nil
}
