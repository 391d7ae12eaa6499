package queueconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const configColumns = `queue_id, profile_id, vip_boost, vip_tier_floor, delayed_boost,
	large_party_boost, large_party_threshold, rebalance_enabled, rebalance_interval_seconds,
	max_position_change, peak_windows, peak_multiplier, created_at, updated_at`

func (r *postgresRepo) Upsert(ctx context.Context, cfg *QueuePriorityConfig) error {
	windows, err := json.Marshal(cfg.PeakWindows)
	if err != nil {
		return fmt.Errorf("encode peak windows: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO queue_priority_configs
		  (queue_id, profile_id, vip_boost, vip_tier_floor, delayed_boost,
		   large_party_boost, large_party_threshold, rebalance_enabled,
		   rebalance_interval_seconds, max_position_change, peak_windows, peak_multiplier)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (queue_id) DO UPDATE SET
		  profile_id=EXCLUDED.profile_id,
		  vip_boost=EXCLUDED.vip_boost,
		  vip_tier_floor=EXCLUDED.vip_tier_floor,
		  delayed_boost=EXCLUDED.delayed_boost,
		  large_party_boost=EXCLUDED.large_party_boost,
		  large_party_threshold=EXCLUDED.large_party_threshold,
		  rebalance_enabled=EXCLUDED.rebalance_enabled,
		  rebalance_interval_seconds=EXCLUDED.rebalance_interval_seconds,
		  max_position_change=EXCLUDED.max_position_change,
		  peak_windows=EXCLUDED.peak_windows,
		  peak_multiplier=EXCLUDED.peak_multiplier,
		  updated_at=$13`,
		cfg.QueueID, nullableUUID(cfg.ProfileID), cfg.VipBoost, cfg.VipTierFloor,
		cfg.DelayedBoost, cfg.LargePartyBoost, cfg.LargePartyThreshold,
		cfg.RebalanceEnabled, cfg.RebalanceIntervalSeconds, cfg.MaxPositionChange,
		windows, cfg.PeakMultiplier, time.Now())
	return err
}

func (r *postgresRepo) GetByQueue(ctx context.Context, queueID string) (*QueuePriorityConfig, error) {
	uid, err := uuid.Parse(queueID)
	if err != nil {
		return nil, err
	}
	return scanConfig(r.db.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM queue_priority_configs WHERE queue_id=$1`, uid))
}

func (r *postgresRepo) ListRebalanceEnabled(ctx context.Context) ([]*QueuePriorityConfig, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+configColumns+` FROM queue_priority_configs WHERE rebalance_enabled=true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*QueuePriorityConfig
	for rows.Next() {
		cfg, err := scanConfigRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Delete(ctx context.Context, queueID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM queue_priority_configs WHERE queue_id=$1`, queueID)
	return err
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConfig(row *sql.Row) (*QueuePriorityConfig, error)      { return scanConfigFrom(row) }
func scanConfigRows(rows *sql.Rows) (*QueuePriorityConfig, error) { return scanConfigFrom(rows) }

func scanConfigFrom(s rowScanner) (*QueuePriorityConfig, error) {
	cfg := &QueuePriorityConfig{}
	var profileID sql.NullString
	var windows []byte
	err := s.Scan(&cfg.QueueID, &profileID, &cfg.VipBoost, &cfg.VipTierFloor,
		&cfg.DelayedBoost, &cfg.LargePartyBoost, &cfg.LargePartyThreshold,
		&cfg.RebalanceEnabled, &cfg.RebalanceIntervalSeconds, &cfg.MaxPositionChange,
		&windows, &cfg.PeakMultiplier, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if profileID.Valid {
		uid, err := uuid.Parse(profileID.String)
		if err == nil {
			cfg.ProfileID = &uid
		}
	}
	if len(windows) > 0 {
		if err := json.Unmarshal(windows, &cfg.PeakWindows); err != nil {
			return nil, fmt.Errorf("decode peak windows: %w", err)
		}
	}
	return cfg, nil
}

func nullableUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
