// Package tier derives the operating capability level from embedding
// provider and storage capability. There is no persistent state machine;
// the tier is recomputed per call from current configuration.
package tier

// Tier is the operating capability level.
type Tier int

const (
	// Full (Tier 1): embedding provider present and store vector-capable.
	// Semantic search, recency boost and graph expansion all run.
	Full Tier = iota + 1

	// Degraded (Tier 2): embedder or vector capability missing.
	// Similarity-based operations fast-fail to empty results; explicit
	// lexical fallbacks may run where designed in.
	Degraded

	// Disabled (Tier 3): automatic context features are switched off.
	// Direct topic lookups still function.
	Disabled
)

// Compute derives the tier from current configuration and the storage
// adapter's capability flag.
func Compute(disabled, vectorCapable, hasEmbedder bool) Tier {
	if disabled {
		return Disabled
	}
	if vectorCapable && hasEmbedder {
		return Full
	}
	return Degraded
}

// SemanticSearch reports whether similarity-based operations may run.
func (t Tier) SemanticSearch() bool {
	return t == Full
}

// AutoContext reports whether automatic context features (semantic edge
// detection, suggestion ranking, lexical fallback) may run.
func (t Tier) AutoContext() bool {
	return t != Disabled
}

func (t Tier) String() string {
	switch t {
	case Full:
		return "tier1"
	case Degraded:
		return "tier2"
	case Disabled:
		return "tier3"
	default:
		return "unknown"
	}
}
