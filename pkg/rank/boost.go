package rank

import (
	"math"
	"time"
)

// Boost blends raw similarity with a Gaussian age decay. It is used when a
// caller wants a recency bias without discarding strong historical matches,
// independently of the fixed-weight relevance score.
type Boost struct {
	// Weight of the decay term in the final score, in [0,1].
	Weight float64
	// ScaleDays is the age at which the decay reaches DecayAtScale.
	ScaleDays float64
	// DecayAtScale is the decay value at ScaleDays, in (0,1).
	DecayAtScale float64
}

// DefaultBoost returns the standard recency boost configuration.
func DefaultBoost() Boost {
	return Boost{Weight: 0.3, ScaleDays: 30, DecayAtScale: 0.5}
}

// Apply computes finalScore = similarity*(1-weight) + decay*weight where
// decay = exp(-(age/scale)^2 / (2*ln(1/decayAtScale))). Invalid
// configurations leave the similarity untouched.
func (b Boost) Apply(similarity float64, age time.Duration) float64 {
	if b.Weight <= 0 || b.ScaleDays <= 0 || b.DecayAtScale <= 0 || b.DecayAtScale >= 1 {
		return similarity
	}
	if age < 0 {
		age = 0
	}

	ageDays := age.Hours() / 24.0
	ratio := ageDays / b.ScaleDays
	decay := math.Exp(-(ratio * ratio) / (2 * math.Log(1/b.DecayAtScale)))

	return similarity*(1-b.Weight) + decay*b.Weight
}
