// Package rank scores and selects decisions for retrieval. The weights and
// constants are hand-tuned and load-bearing; changing them changes which
// memories resurface.
package rank

import (
	"math"
	"sort"
	"time"

	"github.com/dan-solli/mnesis/pkg/store"
)

// Fixed blend weights for the relevance score.
const (
	RecencyWeight    = 0.2
	ImportanceWeight = 0.5
	SemanticWeight   = 0.3

	// RecencyHalfLifeDays halves the recency term every 30 days:
	// 0d -> 1.0, 30d -> 0.5, 90d -> 0.125.
	RecencyHalfLifeDays = 30.0

	// ScoreFloor drops candidates that score below it.
	ScoreFloor = 0.5

	// DefaultTopN is the number of full-detail results returned.
	DefaultTopN = 3
)

// Importance constants keyed by outcome. Unresolved failures are the most
// valuable memories to resurface.
const (
	importanceFailure = 1.0
	importancePartial = 0.7
	importanceSuccess = 0.5
	importanceDefault = 0.3
)

// Recency computes the exponential age decay multiplier with the fixed
// 30-day half-life. Negative ages score 1.0.
func Recency(age time.Duration) float64 {
	if age < 0 {
		return 1.0
	}
	ageDays := age.Hours() / 24.0
	return math.Pow(0.5, ageDays/RecencyHalfLifeDays)
}

// Importance maps an outcome to its fixed weight.
func Importance(outcome string) float64 {
	switch outcome {
	case store.OutcomeFailure:
		return importanceFailure
	case store.OutcomePartial:
		return importancePartial
	case store.OutcomeSuccess:
		return importanceSuccess
	default:
		return importanceDefault
	}
}

// Score blends recency, outcome importance and semantic similarity with
// the fixed 0.2/0.5/0.3 weights. similarity is 0 when either embedding is
// unavailable.
func Score(age time.Duration, outcome string, similarity float64) float64 {
	return RecencyWeight*Recency(age) +
		ImportanceWeight*Importance(outcome) +
		SemanticWeight*similarity
}

// Scored pairs a decision with its score components.
type Scored struct {
	Decision   *store.Decision `json:"decision"`
	Similarity float64         `json:"similarity"`
	Recency    float64         `json:"recency"`
	Importance float64         `json:"importance"`
	Score      float64         `json:"score"`
}

// Rank scores decisions against similarities (keyed by decision ID; absent
// entries score 0 semantic) and returns them sorted by score descending.
// Ordering ties break on creation time, newest first.
func Rank(decisions []*store.Decision, similarities map[string]float64, now time.Time) []Scored {
	scored := make([]Scored, 0, len(decisions))
	for _, d := range decisions {
		age := now.Sub(d.CreatedAt)
		sim := similarities[d.ID]
		scored = append(scored, Scored{
			Decision:   d,
			Similarity: sim,
			Recency:    Recency(age),
			Importance: Importance(d.Outcome),
			Score:      Score(age, d.Outcome, sim),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Decision.CreatedAt.After(scored[j].Decision.CreatedAt)
	})
	return scored
}
