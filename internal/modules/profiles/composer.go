package profiles

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fulfilq/priority-engine/internal/modules/rules"
	"github.com/fulfilq/priority-engine/internal/modules/snapshot"
)

// DefaultProfileName is recorded as profileUsed when a queue has no profile
// configured and scoring falls back to the order's manual priority flag.
const DefaultProfileName = "default"

// Manual priority fallback scores, used only when no profile applies.
var manualScores = map[snapshot.ManualPriority]float64{
	snapshot.ManualLow:    25,
	snapshot.ManualNormal: 50,
	snapshot.ManualHigh:   75,
	snapshot.ManualUrgent: 100,
}

// RuleContribution is one rule's share of a composed score.
type RuleContribution struct {
	RuleID       uuid.UUID `json:"rule_id"`
	RawScore     float64   `json:"raw_score"`
	Weight       float64   `json:"weight"`
	Weighted     float64   `json:"weighted"`
	UsedFallback bool      `json:"used_fallback,omitempty"`
}

// Composition is the aggregate result of running a profile over one order.
type Composition struct {
	TotalScore      float64            `json:"total_score"`
	NormalizedScore float64            `json:"normalized_score"`
	Components      []RuleContribution `json:"components"`
	ProfileUsed     string             `json:"profile_used"`
}

// RequiredRuleFailed reports that a rule marked required could not be
// evaluated, which fails the composition for this order/queue pair only.
type RequiredRuleFailed struct {
	ProfileID uuid.UUID
	RuleID    uuid.UUID
	Err       error
}

func (e *RequiredRuleFailed) Error() string {
	return fmt.Sprintf("required rule %s failed in profile %s: %v", e.RuleID, e.ProfileID, e.Err)
}

func (e *RequiredRuleFailed) Unwrap() error { return e.Err }

// Compose evaluates every rule bound into the profile and aggregates the
// weighted contributions. Inapplicable or failing rules fall back to the
// binding's fallback score unless the binding is required.
//
// When normalization is on, the total is min-max scaled across the profile's
// theoretical weighted minimum and maximum onto [0, 100].
func Compose(profile *PriorityProfile, ruleSet map[uuid.UUID]*rules.PriorityRule, in rules.EvalInput) (*Composition, error) {
	comp := &Composition{ProfileUsed: profile.Name}

	var theoreticalMin, theoreticalMax float64
	for _, binding := range profile.Rules {
		rule, ok := ruleSet[binding.RuleID]
		weight := binding.EffectiveWeight(rule)

		var raw float64
		var usedFallback bool
		if !ok || !rule.IsActive {
			// Stale binding: the rule was deactivated after the profile
			// was saved. Treated like an inapplicable rule.
			raw, usedFallback = binding.FallbackScore, true
			if binding.IsRequired {
				return nil, &RequiredRuleFailed{ProfileID: profile.ID, RuleID: binding.RuleID, Err: errors.New("rule missing or inactive")}
			}
		} else {
			score, err := rules.Evaluate(rule, in)
			switch {
			case err == nil:
				raw = score
			case binding.IsRequired:
				return nil, &RequiredRuleFailed{ProfileID: profile.ID, RuleID: binding.RuleID, Err: err}
			default:
				raw, usedFallback = binding.FallbackScore, true
			}
		}

		weighted := raw * weight
		comp.TotalScore += weighted
		comp.Components = append(comp.Components, RuleContribution{
			RuleID:       binding.RuleID,
			RawScore:     raw,
			Weight:       weight,
			Weighted:     weighted,
			UsedFallback: usedFallback,
		})

		if ok {
			theoreticalMin += rule.MinScore * weight
			theoreticalMax += rule.MaxScore * weight
		} else {
			theoreticalMin += binding.FallbackScore * weight
			theoreticalMax += binding.FallbackScore * weight
		}
	}

	comp.NormalizedScore = comp.TotalScore
	if profile.Normalize {
		switch profile.NormalizationMethod {
		case NormalizationMinMax, "":
			span := theoreticalMax - theoreticalMin
			if span > 0 {
				comp.NormalizedScore = (comp.TotalScore - theoreticalMin) / span * 100
			}
		default:
			return nil, &rules.ConfigError{Field: "normalization_method", Message: fmt.Sprintf("unknown value %q", profile.NormalizationMethod)}
		}
	}
	return comp, nil
}

// ComposeDefault maps the order's coarse manual priority flag onto a small
// fixed score set. Used when the queue has no profile configured.
func ComposeDefault(order *snapshot.Order) *Composition {
	score, ok := manualScores[order.ManualPriority]
	if !ok {
		score = manualScores[snapshot.ManualNormal]
	}
	return &Composition{
		TotalScore:      score,
		NormalizedScore: score,
		ProfileUsed:     DefaultProfileName,
	}
}

// EffectiveWeight resolves the binding's weight: the override when set,
// otherwise the rule's own weight.
func (b ProfileRule) EffectiveWeight(rule *rules.PriorityRule) float64 {
	if b.WeightOverride != nil {
		return *b.WeightOverride
	}
	if rule != nil {
		return rule.Weight
	}
	return 1
}
