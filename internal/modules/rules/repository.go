package rules

import "context"

// Repository defines data access for priority rules.
type Repository interface {
	// Create persists a new rule.
	Create(ctx context.Context, rule *PriorityRule) error

	// GetByID retrieves a rule by UUID.
	GetByID(ctx context.Context, id string) (*PriorityRule, error)

	// List returns all rules, active and inactive.
	List(ctx context.Context) ([]*PriorityRule, error)

	// ListActive returns only active rules.
	ListActive(ctx context.Context) ([]*PriorityRule, error)

	// Update overwrites an existing rule.
	Update(ctx context.Context, rule *PriorityRule) error

	// Deactivate marks a rule inactive without deleting it; profiles that
	// reference it keep their history.
	Deactivate(ctx context.Context, id string) error
}
