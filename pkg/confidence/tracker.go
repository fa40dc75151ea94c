// Package confidence evolves a decision's confidence scalar from observed
// outcomes. The update rule is an additive heuristic, not a Bayesian
// posterior; the impact constants must not be smoothed or re-tuned.
package confidence

import (
	"time"

	"github.com/dan-solli/mnesis/pkg/store"
)

// Impact constants per outcome.
const (
	ImpactSuccess = 0.2
	ImpactFailure = -0.3
	ImpactPartial = 0.1

	// StabilityBonus is added on success when the decision survived at
	// least StabilityThreshold before confirmation.
	StabilityBonus     = 0.1
	StabilityThreshold = 30 * 24 * time.Hour

	// AttributionWindow bounds how old a decision may be, relative to the
	// feedback, to receive outcome evidence. Older decisions are considered
	// stale targets for free-text feedback.
	AttributionWindow = time.Hour
)

// Clamp bounds a confidence value to [0,1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Impact returns the confidence delta for an outcome observed at observedAt
// on a decision created at createdAt.
func Impact(outcome string, createdAt, observedAt time.Time) float64 {
	switch outcome {
	case store.OutcomeSuccess:
		impact := ImpactSuccess
		if observedAt.Sub(createdAt) >= StabilityThreshold {
			impact += StabilityBonus
		}
		return impact
	case store.OutcomeFailure:
		return ImpactFailure
	case store.OutcomePartial:
		return ImpactPartial
	default:
		return 0
	}
}

// Evolve applies one outcome observation:
// newConfidence = clamp(prior + impact, 0, 1).
func Evolve(prior float64, outcome string, createdAt, observedAt time.Time) float64 {
	return Clamp(prior + Impact(outcome, createdAt, observedAt))
}

// Attributable reports whether feedback at feedbackAt may be attributed to
// a decision created at createdAt: only decisions inside the rolling
// 1-hour window are eligible, avoiding misattribution to stale decisions.
func Attributable(createdAt, feedbackAt time.Time) bool {
	age := feedbackAt.Sub(createdAt)
	return age >= 0 && age <= AttributionWindow
}
