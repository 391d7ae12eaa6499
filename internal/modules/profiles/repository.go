package profiles

import "context"

// Repository defines data access for priority profiles and their rule bindings.
type Repository interface {
	// Create persists a profile with its rule bindings atomically. A default
	// profile demotes any previous default in the same transaction, so at most
	// one active default exists at any point.
	Create(ctx context.Context, profile *PriorityProfile) error

	// GetByID retrieves a profile with its bindings.
	GetByID(ctx context.Context, id string) (*PriorityProfile, error)

	// GetDefault retrieves the active default profile, if any.
	GetDefault(ctx context.Context) (*PriorityProfile, error)

	// List returns all profiles with their bindings.
	List(ctx context.Context) ([]*PriorityProfile, error)

	// Update overwrites a profile and replaces its bindings atomically,
	// demoting any other default under the same transaction when the profile
	// is the new default.
	Update(ctx context.Context, profile *PriorityProfile) error

	// Deactivate marks a profile inactive.
	Deactivate(ctx context.Context, id string) error
}
