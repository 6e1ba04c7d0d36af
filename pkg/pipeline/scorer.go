package pipeline

import "github.com/caremesh-ai/rampart/pkg/threat"

// Score reduces a finding set to a scalar risk score in [0,1].
//
// The score is max(maxWeight, weightedAvg) where maxWeight is the weight of
// the highest severity present and weightedAvg is the mean of
// weight(severity) x confidence over all findings. A single critical
// finding therefore dominates even when low-confidence findings would drag
// an average down, while several corroborating medium findings can push the
// score above any one of them.
func Score(findings []threat.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}

	maxWeight := 0.0
	sum := 0.0
	for _, f := range findings {
		w := f.Severity.Weight()
		if w > maxWeight {
			maxWeight = w
		}
		sum += w * f.Confidence
	}

	score := sum / float64(len(findings))
	if maxWeight > score {
		score = maxWeight
	}
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
