package graph

import (
	"context"
	"strings"
	"time"

	"github.com/dan-solli/mnesis/pkg/store"
)

// conflictKeywords are phrases that, combined with high semantic
// similarity to an earlier decision, indicate a contradiction rather than
// a refinement.
var conflictKeywords = []string{
	"instead of",
	"rather than",
	"switch from",
	"no longer",
	"instead",
	"revert",
	"rollback",
	"deprecate",
	"replace",
}

func hasConflictKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range conflictKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// detectSemanticLinks compares a freshly embedded decision with active
// decisions from the trailing window and writes refines or contradicts
// edges for strong matches. Pairs already related by supersession are
// skipped; INSERT OR IGNORE on edges makes re-detection harmless.
func (m *Manager) detectSemanticLinks(ctx context.Context, d *store.Decision, vec []float32) {
	since := time.Now().Add(-m.cfg.ConflictWindow)
	candidates, err := m.db.DecisionsSince(ctx, since, 100)
	if err != nil {
		m.cfg.Logger.Warn("conflict window scan failed", "error", err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	matches, err := m.db.VectorSearch(ctx, vec, 20)
	if err != nil {
		m.cfg.Logger.Warn("vector search failed during link detection", "error", err)
		return
	}
	simByID := make(map[string]float64, len(matches))
	for _, match := range matches {
		simByID[match.DecisionID] = match.Similarity
	}

	conflictLanguage := hasConflictKeyword(d.Decision + " " + d.Reasoning)

	for _, other := range candidates {
		if other.ID == d.ID || m.supersessionLinked(d, other) {
			continue
		}
		sim, ok := simByID[other.ID]
		if !ok {
			continue
		}

		switch {
		case sim >= m.cfg.RefineThreshold:
			m.addLink(ctx, d.ID, other.ID, store.RelRefines, "high semantic similarity")
		case sim >= m.cfg.ConflictThreshold && conflictLanguage:
			m.addLink(ctx, d.ID, other.ID, store.RelContradicts, "similar decision with conflicting language")
		}
	}
}

// detectTopicConflicts flags active decisions that share a topic but
// diverge in their decision text. Works at every tier that allows
// automatic context, no embeddings required.
func (m *Manager) detectTopicConflicts(ctx context.Context, d *store.Decision) {
	others, err := m.db.ActiveByTopic(ctx, d.Topic)
	if err != nil {
		m.cfg.Logger.Warn("topic conflict scan failed", "topic", d.Topic, "error", err)
		return
	}
	for _, other := range others {
		if other.ID == d.ID || m.supersessionLinked(d, other) {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(other.Decision), strings.TrimSpace(d.Decision)) {
			continue
		}
		m.addLink(ctx, d.ID, other.ID, store.RelContradicts, "diverging decision on same topic")
	}
}

// supersessionLinked reports whether two decisions are already related
// through the supersedes chain; such pairs never get refines/contradicts
// edges.
func (m *Manager) supersessionLinked(a, b *store.Decision) bool {
	return a.Supersedes == b.ID || a.SupersededBy == b.ID ||
		b.Supersedes == a.ID || b.SupersededBy == a.ID
}

func (m *Manager) addLink(ctx context.Context, fromID, toID, relationship, reason string) {
	edge := &store.Edge{
		FromID:       fromID,
		ToID:         toID,
		Relationship: relationship,
		Reason:       reason,
	}
	if err := m.db.AddEdge(ctx, edge); err != nil {
		m.cfg.Logger.Warn("link edge write failed",
			"from", fromID, "to", toID, "relationship", relationship, "error", err)
		return
	}
	m.cfg.Logger.Debug("decision link detected",
		"from", fromID, "to", toID, "relationship", relationship)
}
