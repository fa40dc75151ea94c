// Package graph owns decision and edge records: it creates decisions,
// maintains supersedes chains, links multi-parent refinements and flags
// contradictions.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dan-solli/mnesis/pkg/confidence"
	"github.com/dan-solli/mnesis/pkg/embeddings"
	"github.com/dan-solli/mnesis/pkg/store"
	"github.com/dan-solli/mnesis/pkg/tier"
)

// ErrValidation indicates a request was rejected before any write.
var ErrValidation = errors.New("validation failed")

// Config tunes the graph manager. Zero values get defaults applied.
type Config struct {
	// Embedder may be nil; semantic link detection is then skipped.
	Embedder embeddings.Client

	// Logger for best-effort path warnings. Defaults to slog.Default().
	Logger *slog.Logger

	// Disabled switches off all automatic context features (Tier 3).
	Disabled bool

	// EmbedTimeout bounds every embedding call; expiry resolves to
	// "no vector", identical to running without an embedder.
	EmbedTimeout time.Duration

	// ConflictWindow is the trailing window scanned for semantic links.
	ConflictWindow time.Duration

	// RefineThreshold is the similarity above which a refines edge is
	// written; ConflictThreshold the one above which a lexical conflict
	// keyword yields a contradicts edge.
	RefineThreshold   float64
	ConflictThreshold float64
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.EmbedTimeout == 0 {
		c.EmbedTimeout = 5 * time.Second
	}
	if c.ConflictWindow == 0 {
		c.ConflictWindow = 7 * 24 * time.Hour
	}
	if c.RefineThreshold == 0 {
		c.RefineThreshold = 0.85
	}
	if c.ConflictThreshold == 0 {
		c.ConflictThreshold = 0.70
	}
}

// Manager maintains the decision graph on top of a store handle. The
// handle is injected; there is no package-level store.
type Manager struct {
	db  *store.DB
	cfg Config
}

// NewManager creates a graph manager over an open store.
func NewManager(db *store.DB, cfg Config) *Manager {
	cfg.applyDefaults()
	return &Manager{db: db, cfg: cfg}
}

// Tier derives the current operating tier. Recomputed on every call; no
// state machine.
func (m *Manager) Tier() tier.Tier {
	return tier.Compute(m.cfg.Disabled, m.db.VectorCapable(), m.cfg.Embedder != nil)
}

// LearnRequest carries the inputs to LearnDecision.
type LearnRequest struct {
	Topic       string
	Decision    string
	Reasoning   string
	Confidence  float64
	Outcome     string // defaults to pending
	SessionID   string
	RefinedFrom []string
}

// LearnDecision records a decision for a topic, superseding the previous
// one if present. The decision insert, the supersedes edge and the
// superseded_by pointer flip are one atomic write; everything after commit
// (refines edges, embedding, conflict detection) is best-effort enrichment
// that never fails the primary result.
func (m *Manager) LearnDecision(ctx context.Context, req LearnRequest) (string, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return "", fmt.Errorf("%w: topic is required", ErrValidation)
	}
	if strings.TrimSpace(req.Decision) == "" {
		return "", fmt.Errorf("%w: decision is required", ErrValidation)
	}
	if strings.TrimSpace(req.Reasoning) == "" {
		return "", fmt.Errorf("%w: reasoning is required", ErrValidation)
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return "", fmt.Errorf("%w: confidence %v out of range [0,1]", ErrValidation, req.Confidence)
	}
	if req.Outcome == "" {
		req.Outcome = store.OutcomePending
	}
	if !store.ValidOutcome(req.Outcome) {
		return "", fmt.Errorf("%w: invalid outcome %q", ErrValidation, req.Outcome)
	}

	// Missing refinement parents are filtered, not fatal.
	parents := m.resolveParents(ctx, req.RefinedFrom)

	conf := req.Confidence
	if len(parents) > 0 {
		var sum float64
		for _, p := range parents {
			sum += p.Confidence
		}
		mean := sum / float64(len(parents))
		conf = confidence.Clamp(0.6*req.Confidence + 0.4*mean)
	}

	prev, err := m.db.CurrentDecision(ctx, req.Topic)
	if err != nil {
		return "", err
	}

	d := &store.Decision{
		ID:         newDecisionID(req.Topic),
		Topic:      req.Topic,
		Decision:   req.Decision,
		Reasoning:  req.Reasoning,
		Confidence: conf,
		Outcome:    req.Outcome,
		SessionID:  req.SessionID,
	}
	for _, p := range parents {
		d.RefinedFrom = append(d.RefinedFrom, p.ID)
	}

	if prev != nil {
		err = m.db.InsertWithSupersession(ctx, d, prev.ID, "new decision on topic")
	} else {
		err = m.db.InsertDecision(ctx, d)
	}
	if err != nil {
		return "", err
	}

	for _, p := range parents {
		edge := &store.Edge{
			FromID:       d.ID,
			ToID:         p.ID,
			Relationship: store.RelRefines,
			Reason:       "explicit refinement parent",
		}
		if err := m.db.AddEdge(ctx, edge); err != nil {
			m.cfg.Logger.Warn("refines edge write failed", "decision", d.ID, "parent", p.ID, "error", err)
		}
	}

	m.enrich(ctx, d)

	return d.ID, nil
}

// enrich runs the post-commit best-effort steps: embedding insert,
// semantic link detection and lexical topic conflict detection. Per-step
// failures are isolated so a late failure never unwinds committed work.
func (m *Manager) enrich(ctx context.Context, d *store.Decision) {
	t := m.Tier()
	if !t.AutoContext() {
		return
	}

	if t.SemanticSearch() {
		vec := m.embed(ctx, embedText(d))
		if vec != nil {
			if err := m.db.InsertEmbedding(ctx, d.ID, vec); err != nil {
				m.cfg.Logger.Warn("embedding insert failed", "decision", d.ID, "error", err)
			}
			m.detectSemanticLinks(ctx, d, vec)
		}
	}

	// Runs with or without an embedding provider.
	m.detectTopicConflicts(ctx, d)
}

// resolveParents filters refinement parent IDs down to decisions that
// exist, silently dropping dangling references.
func (m *Manager) resolveParents(ctx context.Context, ids []string) []*store.Decision {
	var parents []*store.Decision
	for _, id := range ids {
		p, err := m.db.GetDecision(ctx, id)
		if err != nil {
			if !errors.Is(err, store.ErrDecisionNotFound) {
				m.cfg.Logger.Warn("parent lookup failed", "parent", id, "error", err)
			}
			continue
		}
		parents = append(parents, p)
	}
	return parents
}

// GetPreviousDecision returns the most recent non-superseded decision for
// a topic, or nil when the topic has no history.
func (m *Manager) GetPreviousDecision(ctx context.Context, topic string) (*store.Decision, error) {
	return m.db.CurrentDecision(ctx, topic)
}

// UpdateOutcome records outcome evidence on a decision and evolves its
// confidence. Unknown IDs and invalid outcomes are errors, never silent
// no-ops.
func (m *Manager) UpdateOutcome(ctx context.Context, id, outcome, details string) error {
	if !store.ValidOutcome(outcome) {
		return fmt.Errorf("%w: invalid outcome %q", ErrValidation, outcome)
	}

	d, err := m.db.GetDecision(ctx, id)
	if err != nil {
		return err
	}

	var failureReason, limitation string
	switch outcome {
	case store.OutcomeFailure:
		failureReason = details
	case store.OutcomePartial:
		limitation = details
	}

	if err := m.db.UpdateOutcome(ctx, id, outcome, failureReason, limitation); err != nil {
		return err
	}

	newConf := confidence.Evolve(d.Confidence, outcome, d.CreatedAt, time.Now())
	if newConf != d.Confidence {
		if err := m.db.UpdateConfidence(ctx, id, newConf); err != nil {
			return err
		}
	}
	return nil
}

// RecordFeedback classifies free-text feedback into an outcome and applies
// it, but only when the decision falls inside the attribution window.
// Returns the classified outcome, or empty when nothing applied.
func (m *Manager) RecordFeedback(ctx context.Context, id, feedback string) (string, error) {
	outcome := confidence.ClassifyOutcome(feedback)
	if outcome == "" {
		return "", nil
	}

	d, err := m.db.GetDecision(ctx, id)
	if err != nil {
		return "", err
	}
	if !confidence.Attributable(d.CreatedAt, time.Now()) {
		m.cfg.Logger.Debug("feedback outside attribution window", "decision", id)
		return "", nil
	}

	if err := m.UpdateOutcome(ctx, id, outcome, feedback); err != nil {
		return "", err
	}
	return outcome, nil
}

// embed generates an embedding under the configured timeout. Any failure,
// including deadline expiry, resolves to nil: the caller degrades exactly
// as if no provider were configured.
func (m *Manager) embed(ctx context.Context, text string) []float32 {
	if m.cfg.Embedder == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.EmbedTimeout)
	defer cancel()

	vec, err := m.cfg.Embedder.Embed(ctx, text)
	if err != nil {
		m.cfg.Logger.Warn("embedding generation failed", "error", err)
		return nil
	}
	return vec
}

func embedText(d *store.Decision) string {
	return d.Topic + ": " + d.Decision + ". " + d.Reasoning
}

// newDecisionID derives a collision-resistant ID from the topic, the
// creation instant and a random suffix.
func newDecisionID(topic string) string {
	return slugify(topic) + "-" +
		strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" +
		uuid.New().String()[:8]
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
		if b.Len() >= 32 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
