package mnesis

import (
	"github.com/google/uuid"

	"github.com/dan-solli/mnesis/pkg/graph"
	"github.com/dan-solli/mnesis/pkg/rank"
	"github.com/dan-solli/mnesis/pkg/store"
	"github.com/dan-solli/mnesis/pkg/tier"
)

// Type re-exports for caller convenience

// Decision is re-exported from the store package
type Decision = store.Decision

// Edge is re-exported from the store package
type Edge = store.Edge

// DecisionGraph is re-exported from the graph package
type DecisionGraph = graph.DecisionGraph

// Scored is re-exported from the rank package
type Scored = rank.Scored

// TailSummary is re-exported from the rank package
type TailSummary = rank.TailSummary

// Tier is re-exported from the tier package
type Tier = tier.Tier

// Tier constants re-exported from the tier package
const (
	TierFull     = tier.Full
	TierDegraded = tier.Degraded
	TierDisabled = tier.Disabled
)

// Outcome constants re-exported from the store package
const (
	OutcomePending    = store.OutcomePending
	OutcomeSuccess    = store.OutcomeSuccess
	OutcomeFailure    = store.OutcomeFailure
	OutcomePartial    = store.OutcomePartial
	OutcomeSuperseded = store.OutcomeSuperseded
)

func newOperationID() string {
	return uuid.New().String()
}
