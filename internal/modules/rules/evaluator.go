package rules

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fulfilq/priority-engine/internal/modules/snapshot"
)

// EvalInput carries everything a rule may inspect. Now is passed explicitly so
// evaluations are pure and reproducible under test.
type EvalInput struct {
	Order    *snapshot.Order
	Customer *snapshot.Customer // nil for walk-in orders
	Now      time.Time
}

// Evaluate runs a rule's algorithm against an order and returns a score inside
// [rule.MinScore, rule.MaxScore]. It returns ErrInapplicable when the rule has
// no opinion about the order, or an *EvaluationError when the algorithm itself
// fails (bad parameters, unknown algorithm).
func Evaluate(rule *PriorityRule, in EvalInput) (float64, error) {
	if in.Order == nil {
		return 0, evalErr(rule, fmt.Errorf("order snapshot is nil"))
	}

	var score float64
	var err error
	switch rule.AlgorithmType {
	case AlgorithmPreparationTime:
		score, err = evalPreparationTime(rule, in.Order)
	case AlgorithmDeliveryWindow:
		score, err = evalDeliveryWindow(rule, in.Order, in.Now)
	case AlgorithmVipStatus:
		score, err = evalVipStatus(rule, in.Customer)
	case AlgorithmOrderValue:
		score, err = evalOrderValue(rule, in.Order)
	default:
		return 0, evalErr(rule, fmt.Errorf("unknown algorithm type %q", rule.AlgorithmType))
	}
	if err != nil {
		return 0, err
	}
	return clamp(score, rule.MinScore, rule.MaxScore), nil
}

// evalPreparationTime scores quick orders high. An order with no prep
// estimates at all fast-tracks to MaxScore; whether that is the right policy
// for unknown prep cost is an open product question, so the behaviour is kept
// as observed.
func evalPreparationTime(rule *PriorityRule, order *snapshot.Order) (float64, error) {
	var params PreparationTimeParams
	if err := decodeParams(rule, &params); err != nil {
		return 0, err
	}

	known := false
	totalMinutes := 0.0
	for _, item := range order.Items {
		if item.PrepMinutes == nil {
			continue
		}
		known = true
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		totalMinutes += *item.PrepMinutes * float64(qty)
	}
	if !known {
		return rule.MaxScore, nil
	}

	over := totalMinutes - params.BaseMinutes
	if over < 0 {
		over = 0
	}
	return rule.MaxScore - params.PenaltyPerMinute*over, nil
}

// evalDeliveryWindow maps minutes-remaining onto urgency bands:
// already late -> MaxScore; inside the grace window -> upper band (>85% of
// range); inside the critical window -> middle band (30-70%); otherwise a low
// score decaying toward MinScore.
func evalDeliveryWindow(rule *PriorityRule, order *snapshot.Order, now time.Time) (float64, error) {
	if order.ScheduledAt == nil {
		return 0, ErrInapplicable
	}
	var params DeliveryWindowParams
	if err := decodeParams(rule, &params); err != nil {
		return 0, err
	}
	if params.GraceMinutes <= 0 || params.CriticalMinutes <= params.GraceMinutes {
		return 0, evalErr(rule, fmt.Errorf("grace_minutes must be > 0 and < critical_minutes"))
	}

	remaining := order.ScheduledAt.Sub(now).Minutes()
	rng := rule.MaxScore - rule.MinScore

	switch {
	case remaining <= 0:
		return rule.MaxScore, nil
	case remaining <= params.GraceMinutes:
		// 86%..100% of the range, rising as the deadline closes in.
		return rule.MinScore + rng*(1-0.14*(remaining/params.GraceMinutes)), nil
	case remaining <= params.CriticalMinutes:
		// 35%..70% of the range, interpolated across the critical window.
		frac := (remaining - params.GraceMinutes) / (params.CriticalMinutes - params.GraceMinutes)
		return rule.MinScore + rng*(0.7-0.35*frac), nil
	default:
		// Far out: decays from 30% of the range toward MinScore.
		return rule.MinScore + rng*0.3*(params.CriticalMinutes/remaining), nil
	}
}

func evalVipStatus(rule *PriorityRule, customer *snapshot.Customer) (float64, error) {
	var params VipStatusParams
	if err := decodeParams(rule, &params); err != nil {
		return 0, err
	}
	if customer == nil {
		return rule.MinScore, nil
	}
	tier := strings.ToLower(strings.TrimSpace(customer.LoyaltyTier))
	for name, score := range params.TierScores {
		if strings.ToLower(name) == tier {
			return score, nil
		}
	}
	return rule.MinScore, nil
}

func evalOrderValue(rule *PriorityRule, order *snapshot.Order) (float64, error) {
	var params OrderValueParams
	if err := decodeParams(rule, &params); err != nil {
		return 0, err
	}
	if params.MaxValue <= params.MinValue {
		return 0, evalErr(rule, fmt.Errorf("max_value must be > min_value"))
	}

	frac := (order.Total - params.MinValue) / (params.MaxValue - params.MinValue)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return rule.MinScore + frac*(rule.MaxScore-rule.MinScore), nil
}

func decodeParams(rule *PriorityRule, dest any) error {
	if len(rule.Parameters) == 0 {
		return evalErr(rule, fmt.Errorf("missing parameters"))
	}
	if err := json.Unmarshal(rule.Parameters, dest); err != nil {
		return evalErr(rule, fmt.Errorf("decode parameters: %w", err))
	}
	return nil
}

func evalErr(rule *PriorityRule, err error) error {
	return &EvaluationError{RuleID: rule.ID, Algorithm: rule.AlgorithmType, Err: err}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
