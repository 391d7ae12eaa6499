package rules

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const ruleColumns = `id, name, algorithm_type, is_active, weight, min_score, max_score, parameters, score_shape, created_at, updated_at`

func (r *postgresRepo) Create(ctx context.Context, rule *PriorityRule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO priority_rules
		  (id, name, algorithm_type, is_active, weight, min_score, max_score, parameters, score_shape)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rule.ID, rule.Name, rule.AlgorithmType, rule.IsActive,
		rule.Weight, rule.MinScore, rule.MaxScore, []byte(rule.Parameters), rule.ScoreShape)
	return err
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*PriorityRule, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return r.scanRule(r.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM priority_rules WHERE id=$1`, uid))
}

func (r *postgresRepo) List(ctx context.Context) ([]*PriorityRule, error) {
	return r.queryRules(ctx, `SELECT `+ruleColumns+` FROM priority_rules ORDER BY created_at ASC`)
}

func (r *postgresRepo) ListActive(ctx context.Context) ([]*PriorityRule, error) {
	return r.queryRules(ctx, `SELECT `+ruleColumns+` FROM priority_rules WHERE is_active=true ORDER BY created_at ASC`)
}

func (r *postgresRepo) Update(ctx context.Context, rule *PriorityRule) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE priority_rules
		SET name=$2, algorithm_type=$3, is_active=$4, weight=$5,
		    min_score=$6, max_score=$7, parameters=$8, score_shape=$9, updated_at=$10
		WHERE id=$1`,
		rule.ID, rule.Name, rule.AlgorithmType, rule.IsActive,
		rule.Weight, rule.MinScore, rule.MaxScore, []byte(rule.Parameters), rule.ScoreShape,
		time.Now())
	return err
}

func (r *postgresRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE priority_rules SET is_active=false, updated_at=$2 WHERE id=$1`,
		id, time.Now())
	return err
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (r *postgresRepo) scanRule(row *sql.Row) (*PriorityRule, error) {
	rule := &PriorityRule{}
	var params []byte
	err := row.Scan(&rule.ID, &rule.Name, &rule.AlgorithmType, &rule.IsActive,
		&rule.Weight, &rule.MinScore, &rule.MaxScore, &params, &rule.ScoreShape,
		&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rule.Parameters = params
	return rule, nil
}

func (r *postgresRepo) queryRules(ctx context.Context, query string, args ...interface{}) ([]*PriorityRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*PriorityRule
	for rows.Next() {
		rule := &PriorityRule{}
		var params []byte
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.AlgorithmType, &rule.IsActive,
			&rule.Weight, &rule.MinScore, &rule.MaxScore, &params, &rule.ScoreShape,
			&rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		rule.Parameters = params
		out = append(out, rule)
	}
	return out, rows.Err()
}
