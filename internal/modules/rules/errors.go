package rules

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInapplicable signals that a rule has nothing to say about an order
// (e.g. a delivery-window rule on an order with no scheduled time). The
// composer substitutes the profile's fallback score.
var ErrInapplicable = errors.New("rule not applicable to order")

// EvaluationError wraps an unexpected failure inside a rule's algorithm.
type EvaluationError struct {
	RuleID    uuid.UUID
	Algorithm AlgorithmType
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("rule %s (%s) evaluation failed: %v", e.RuleID, e.Algorithm, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// ConfigError reports an invalid rule, profile, or queue configuration.
// Configurations are rejected at save time, never silently coerced.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Message)
}
