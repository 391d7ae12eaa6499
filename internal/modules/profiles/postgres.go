package profiles

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Create(ctx context.Context, profile *PriorityProfile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := demoteOtherDefaults(ctx, tx, profile); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO priority_profiles
		  (id, name, is_active, is_default, normalize, normalization_method)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		profile.ID, profile.Name, profile.IsActive, profile.IsDefault,
		profile.Normalize, profile.NormalizationMethod)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	if err := insertBindings(ctx, tx, profile); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*PriorityProfile, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	p, err := r.scanProfile(r.db.QueryRowContext(ctx, `
		SELECT id, name, is_active, is_default, normalize, normalization_method, created_at, updated_at
		FROM priority_profiles WHERE id=$1`, uid))
	if err != nil {
		return nil, err
	}
	p.Rules, err = r.listBindings(ctx, p.ID)
	return p, err
}

func (r *postgresRepo) GetDefault(ctx context.Context) (*PriorityProfile, error) {
	p, err := r.scanProfile(r.db.QueryRowContext(ctx, `
		SELECT id, name, is_active, is_default, normalize, normalization_method, created_at, updated_at
		FROM priority_profiles WHERE is_default=true AND is_active=true
		ORDER BY updated_at DESC LIMIT 1`))
	if err != nil {
		return nil, err
	}
	p.Rules, err = r.listBindings(ctx, p.ID)
	return p, err
}

func (r *postgresRepo) List(ctx context.Context) ([]*PriorityProfile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, is_active, is_default, normalize, normalization_method, created_at, updated_at
		FROM priority_profiles ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*PriorityProfile
	for rows.Next() {
		p := &PriorityProfile{}
		if err := rows.Scan(&p.ID, &p.Name, &p.IsActive, &p.IsDefault,
			&p.Normalize, &p.NormalizationMethod, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range out {
		if p.Rules, err = r.listBindings(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *postgresRepo) Update(ctx context.Context, profile *PriorityProfile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := demoteOtherDefaults(ctx, tx, profile); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE priority_profiles
		SET name=$2, is_active=$3, is_default=$4, normalize=$5, normalization_method=$6, updated_at=$7
		WHERE id=$1`,
		profile.ID, profile.Name, profile.IsActive, profile.IsDefault,
		profile.Normalize, profile.NormalizationMethod, time.Now())
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM profile_rules WHERE profile_id=$1`, profile.ID); err != nil {
		return fmt.Errorf("clear profile rules: %w", err)
	}
	if err := insertBindings(ctx, tx, profile); err != nil {
		return err
	}
	return tx.Commit()
}

// demoteOtherDefaults keeps at most one default profile. It runs inside the
// caller's write transaction: the new default and the old one's demotion land
// together, so a crash between them cannot leave two defaults and readers
// never observe the intermediate state.
func demoteOtherDefaults(ctx context.Context, tx *sql.Tx, profile *PriorityProfile) error {
	if !profile.IsDefault {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE priority_profiles SET is_default=false, updated_at=$2 WHERE is_default=true AND id<>$1`,
		profile.ID, time.Now())
	if err != nil {
		return fmt.Errorf("demote previous default: %w", err)
	}
	return nil
}

func (r *postgresRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE priority_profiles SET is_active=false, is_default=false, updated_at=$2 WHERE id=$1`,
		id, time.Now())
	return err
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (r *postgresRepo) scanProfile(row *sql.Row) (*PriorityProfile, error) {
	p := &PriorityProfile{}
	err := row.Scan(&p.ID, &p.Name, &p.IsActive, &p.IsDefault,
		&p.Normalize, &p.NormalizationMethod, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) listBindings(ctx context.Context, profileID uuid.UUID) ([]ProfileRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rule_id, position, weight_override, is_required, fallback_score
		FROM profile_rules WHERE profile_id=$1 ORDER BY position ASC`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bindings []ProfileRule
	for rows.Next() {
		var b ProfileRule
		var override sql.NullFloat64
		if err := rows.Scan(&b.RuleID, &b.Position, &override, &b.IsRequired, &b.FallbackScore); err != nil {
			return nil, err
		}
		if override.Valid {
			v := override.Float64
			b.WeightOverride = &v
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

func insertBindings(ctx context.Context, tx *sql.Tx, profile *PriorityProfile) error {
	for _, b := range profile.Rules {
		var override interface{}
		if b.WeightOverride != nil {
			override = *b.WeightOverride
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profile_rules
			  (profile_id, rule_id, position, weight_override, is_required, fallback_score)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			profile.ID, b.RuleID, b.Position, override, b.IsRequired, b.FallbackScore)
		if err != nil {
			return fmt.Errorf("insert profile_rule: %w", err)
		}
	}
	return nil
}
