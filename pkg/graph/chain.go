package graph

import (
	"context"
	"errors"

	"github.com/dan-solli/mnesis/pkg/store"
)

// DecisionGraph is the full history of a topic: the supersession chain
// newest-first plus the refines/contradicts edges touching any decision in
// the chain, bucketed by direction.
type DecisionGraph struct {
	Topic string            `json:"topic"`
	Chain []*store.Decision `json:"chain"`
	Edges EdgeBuckets       `json:"edges"`
}

// EdgeBuckets splits relationship edges by direction relative to the
// chain. Refines holds edges where a chain decision refines something
// else; RefinedBy the reverse. Same for Contradicts/ContradictedBy.
type EdgeBuckets struct {
	Refines        []*store.Edge `json:"refines,omitempty"`
	RefinedBy      []*store.Edge `json:"refined_by,omitempty"`
	Contradicts    []*store.Edge `json:"contradicts,omitempty"`
	ContradictedBy []*store.Edge `json:"contradicted_by,omitempty"`
}

// GetDecisionGraph walks the supersedes chain for a topic from the current
// decision back through history and collects the relationship edges around
// it. A topic with no decisions yields an empty graph, not an error.
func (m *Manager) GetDecisionGraph(ctx context.Context, topic string) (*DecisionGraph, error) {
	g := &DecisionGraph{Topic: topic}

	head, err := m.db.CurrentDecision(ctx, topic)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return g, nil
	}

	// Visited set guards against pointer cycles in damaged data; a
	// correct chain is a straight line.
	seen := map[string]bool{}
	for d := head; d != nil && !seen[d.ID]; {
		seen[d.ID] = true
		g.Chain = append(g.Chain, d)

		if d.Supersedes == "" {
			break
		}
		prev, err := m.db.GetDecision(ctx, d.Supersedes)
		if err != nil {
			if errors.Is(err, store.ErrDecisionNotFound) {
				break
			}
			return nil, err
		}
		d = prev
	}

	ids := make([]string, len(g.Chain))
	for i, d := range g.Chain {
		ids[i] = d.ID
	}
	edges, err := m.db.EdgesForAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, e := range edges {
		switch e.Relationship {
		case store.RelRefines:
			if seen[e.FromID] {
				g.Edges.Refines = append(g.Edges.Refines, e)
			}
			if seen[e.ToID] {
				g.Edges.RefinedBy = append(g.Edges.RefinedBy, e)
			}
		case store.RelContradicts:
			if seen[e.FromID] {
				g.Edges.Contradicts = append(g.Edges.Contradicts, e)
			}
			if seen[e.ToID] {
				g.Edges.ContradictedBy = append(g.Edges.ContradictedBy, e)
			}
		}
	}

	return g, nil
}
