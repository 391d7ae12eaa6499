package scoring

import "time"

// FairnessIndex computes Jain's fairness index over a set of wait times:
// (sum x)^2 / (n * sum x^2). The result is 1.0 when all waits are equal and
// approaches 1/n as one item dominates. An empty sample is vacuously fair.
func FairnessIndex(waits []time.Duration) float64 {
	if len(waits) == 0 {
		return 1.0
	}
	var sum, sumSq float64
	for _, w := range waits {
		x := w.Seconds()
		sum += x
		sumSq += x * x
	}
	if sumSq == 0 {
		// All-zero waits: nobody has waited, nobody is behind.
		return 1.0
	}
	n := float64(len(waits))
	return (sum * sum) / (n * sumSq)
}
