package rebalance

import (
	"sort"

	"github.com/google/uuid"
)

// Item is one queued order considered during a rebalance pass.
type Item struct {
	OrderID  uuid.UUID
	Sequence int     // current sequence number
	Score    float64 // latest normalized priority score
}

// Assignment is the planned sequence number for one item.
type Assignment struct {
	OrderID      uuid.UUID
	FromSequence int
	ToSequence   int
}

// PlanResult is the outcome of planning one rebalance pass.
type PlanResult struct {
	Assignments    []Assignment
	ItemsReordered int
}

// Plan produces a new total ordering for the queue's items, bounded so no
// item moves more than maxPositionChange positions in a single pass. A
// negative cap means unbounded movement.
//
// The desired ranking is a stable sort by score descending, ties broken by
// current sequence ascending, which keeps arrival order among equals. Final
// positions are then filled front to back: an item that has reached the last
// position its cap allows takes the slot, otherwise the best-ranked item
// whose cap permits the slot does. That keeps every move inside the cap,
// resolves collisions deterministically, and converges on the desired
// ranking over repeated passes. Sequence numbers are reassigned contiguously
// from the block's lowest current number, so the result has no duplicates or
// gaps.
func Plan(items []Item, maxPositionChange int) PlanResult {
	n := len(items)
	if n == 0 {
		return PlanResult{}
	}

	// Index == current position once ordered by sequence.
	current := make([]Item, n)
	copy(current, items)
	sort.SliceStable(current, func(i, j int) bool {
		return current[i].Sequence < current[j].Sequence
	})

	order := make([]int, n) // desired rank -> current position
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := current[order[a]], current[order[b]]
		if ia.Score != ib.Score {
			return ia.Score > ib.Score
		}
		return ia.Sequence < ib.Sequence
	})
	assigned := make([]bool, n)
	final := make([]int, 0, n) // slot -> current position
	for slot := 0; slot < n; slot++ {
		pick := -1
		if maxPositionChange >= 0 {
			// An item at its last permitted slot must take it now.
			if pos := slot - maxPositionChange; pos >= 0 && !assigned[pos] {
				pick = pos
			}
		}
		if pick < 0 {
			for rank := 0; rank < n; rank++ {
				pos := order[rank]
				if assigned[pos] {
					continue
				}
				if maxPositionChange >= 0 && pos > slot+maxPositionChange {
					continue // can't be pulled this far forward
				}
				pick = pos
				break
			}
		}
		assigned[pick] = true
		final = append(final, pick)
	}

	base := current[0].Sequence
	result := PlanResult{Assignments: make([]Assignment, n)}
	for slot, pos := range final {
		to := base + slot
		result.Assignments[slot] = Assignment{
			OrderID:      current[pos].OrderID,
			FromSequence: current[pos].Sequence,
			ToSequence:   to,
		}
		if to != current[pos].Sequence {
			result.ItemsReordered++
		}
	}
	return result
}
