package rank

import (
	"time"

	"github.com/dan-solli/mnesis/pkg/store"
)

// FailureNote is a representative failure kept in the tail summary.
type FailureNote struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// TailSummary is the bounded rollup of candidates beyond the top N.
// Detail stays fixed regardless of how long the history grows.
type TailSummary struct {
	Count    int           `json:"count"`
	Span     time.Duration `json:"span"`
	Failures []FailureNote `json:"failures,omitempty"`
}

const maxTailFailures = 3

// Select drops candidates below the score floor, returns at most topN in
// full detail, and rolls the remainder up into a TailSummary (nil when
// nothing is left over).
func Select(scored []Scored, topN int) ([]Scored, *TailSummary) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	kept := make([]Scored, 0, len(scored))
	for _, s := range scored {
		if s.Score >= ScoreFloor {
			kept = append(kept, s)
		}
	}

	if len(kept) <= topN {
		return kept, nil
	}

	top := kept[:topN]
	tail := kept[topN:]

	summary := &TailSummary{Count: len(tail)}

	var oldest, newest time.Time
	for _, s := range tail {
		created := s.Decision.CreatedAt
		if oldest.IsZero() || created.Before(oldest) {
			oldest = created
		}
		if created.After(newest) {
			newest = created
		}
		if s.Decision.Outcome == store.OutcomeFailure && len(summary.Failures) < maxTailFailures {
			summary.Failures = append(summary.Failures, FailureNote{
				Decision: s.Decision.Decision,
				Reason:   s.Decision.FailureReason,
			})
		}
	}
	summary.Span = newest.Sub(oldest)

	return top, summary
}
