package graph

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/dan-solli/mnesis/pkg/store"
)

// fakeEmbedder hands out pre-queued vectors in call order.
type fakeEmbedder struct {
	queue [][]float32
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if len(f.queue) == 0 {
		return nil, errors.New("no vectors queued")
	}
	v := f.queue[0]
	f.queue = f.queue[1:]
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, opts store.Options, cfg Config) (*Manager, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory(opts)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	return NewManager(db, cfg), db
}

func TestLearnDecision_Validation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, store.Options{}, Config{})

	cases := []struct {
		name string
		req  LearnRequest
	}{
		{"missing topic", LearnRequest{Decision: "x", Reasoning: "y", Confidence: 0.5}},
		{"missing decision", LearnRequest{Topic: "t", Reasoning: "y", Confidence: 0.5}},
		{"missing reasoning", LearnRequest{Topic: "t", Decision: "x", Confidence: 0.5}},
		{"confidence too high", LearnRequest{Topic: "t", Decision: "x", Reasoning: "y", Confidence: 1.5}},
		{"confidence negative", LearnRequest{Topic: "t", Decision: "x", Reasoning: "y", Confidence: -0.1}},
		{"bad outcome", LearnRequest{Topic: "t", Decision: "x", Reasoning: "y", Confidence: 0.5, Outcome: "meh"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.LearnDecision(ctx, tc.req); !errors.Is(err, ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestLearnDecision_Supersedes(t *testing.T) {
	ctx := context.Background()
	m, db := newTestManager(t, store.Options{}, Config{})

	firstID, err := m.LearnDecision(ctx, LearnRequest{
		Topic:      "db_choice",
		Decision:   "SQLite",
		Reasoning:  "simple, zero-config",
		Confidence: 0.6,
	})
	if err != nil {
		t.Fatalf("LearnDecision failed: %v", err)
	}

	secondID, err := m.LearnDecision(ctx, LearnRequest{
		Topic:      "db_choice",
		Decision:   "Postgres",
		Reasoning:  "need concurrent writers",
		Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("Second LearnDecision failed: %v", err)
	}

	prev, err := db.GetDecision(ctx, firstID)
	if err != nil {
		t.Fatalf("GetDecision failed: %v", err)
	}
	if prev.SupersededBy != secondID {
		t.Errorf("Expected superseded_by %q, got %q", secondID, prev.SupersededBy)
	}
	if prev.Outcome != store.OutcomeSuperseded {
		t.Errorf("Expected outcome superseded, got %q", prev.Outcome)
	}

	has, err := db.HasEdge(ctx, secondID, firstID, store.RelSupersedes)
	if err != nil {
		t.Fatalf("HasEdge failed: %v", err)
	}
	if !has {
		t.Errorf("Expected supersedes edge %s -> %s", secondID, firstID)
	}

	current, err := m.GetPreviousDecision(ctx, "db_choice")
	if err != nil {
		t.Fatalf("GetPreviousDecision failed: %v", err)
	}
	if current == nil || current.ID != secondID {
		t.Errorf("Expected current decision %q, got %+v", secondID, current)
	}
}

func TestLearnDecision_DefaultsToPending(t *testing.T) {
	ctx := context.Background()
	m, db := newTestManager(t, store.Options{}, Config{})

	id, err := m.LearnDecision(ctx, LearnRequest{
		Topic: "cache", Decision: "in-process LRU", Reasoning: "single node", Confidence: 0.5,
	})
	if err != nil {
		t.Fatalf("LearnDecision failed: %v", err)
	}
	d, err := db.GetDecision(ctx, id)
	if err != nil {
		t.Fatalf("GetDecision failed: %v", err)
	}
	if d.Outcome != store.OutcomePending {
		t.Errorf("Expected pending outcome, got %q", d.Outcome)
	}
}

func TestLearnDecision_RefinementBlend(t *testing.T) {
	ctx := context.Background()
	m, db := newTestManager(t, store.Options{}, Config{})

	parentID, err := m.LearnDecision(ctx, LearnRequest{
		Topic: "retry_policy", Decision: "3 retries", Reasoning: "transient faults", Confidence: 0.5,
	})
	if err != nil {
		t.Fatalf("Parent LearnDecision failed: %v", err)
	}

	childID, err := m.LearnDecision(ctx, LearnRequest{
		Topic:       "retry_backoff",
		Decision:    "exponential backoff with jitter",
		Reasoning:   "thundering herd on fixed delay",
		Confidence:  1.0,
		RefinedFrom: []string{parentID, "no-such-decision"},
	})
	if err != nil {
		t.Fatalf("Child LearnDecision failed: %v", err)
	}

	child, err := db.GetDecision(ctx, childID)
	if err != nil {
		t.Fatalf("GetDecision failed: %v", err)
	}
	// 0.6*1.0 + 0.4*0.5 = 0.8, with the dangling parent filtered out.
	if math.Abs(child.Confidence-0.8) > 1e-9 {
		t.Errorf("Expected blended confidence 0.8, got %v", child.Confidence)
	}
	if len(child.RefinedFrom) != 1 || child.RefinedFrom[0] != parentID {
		t.Errorf("Expected refined_from [%s], got %v", parentID, child.RefinedFrom)
	}

	has, err := db.HasEdge(ctx, childID, parentID, store.RelRefines)
	if err != nil {
		t.Fatalf("HasEdge failed: %v", err)
	}
	if !has {
		t.Errorf("Expected refines edge %s -> %s", childID, parentID)
	}
}

func TestUpdateOutcome_EvolvesConfidence(t *testing.T) {
	ctx := context.Background()
	m, db := newTestManager(t, store.Options{}, Config{})

	id, err := m.LearnDecision(ctx, LearnRequest{
		Topic: "db_choice", Decision: "SQLite", Reasoning: "simple", Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("LearnDecision failed: %v", err)
	}

	if err := m.UpdateOutcome(ctx, id, store.OutcomeFailure, "locked under concurrent writers"); err != nil {
		t.Fatalf("UpdateOutcome failed: %v", err)
	}

	d, err := db.GetDecision(ctx, id)
	if err != nil {
		t.Fatalf("GetDecision failed: %v", err)
	}
	if d.Outcome != store.OutcomeFailure {
		t.Errorf("Expected failure outcome, got %q", d.Outcome)
	}
	if d.FailureReason != "locked under concurrent writers" {
		t.Errorf("Expected failure reason recorded, got %q", d.FailureReason)
	}
	if math.Abs(d.Confidence-0.5) > 1e-9 {
		t.Errorf("Expected confidence 0.8-0.3=0.5, got %v", d.Confidence)
	}
}

func TestUpdateOutcome_Errors(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, store.Options{}, Config{})

	if err := m.UpdateOutcome(ctx, "missing", store.OutcomeSuccess, ""); !errors.Is(err, store.ErrDecisionNotFound) {
		t.Errorf("Expected ErrDecisionNotFound, got %v", err)
	}
	if err := m.UpdateOutcome(ctx, "missing", "sideways", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for bad outcome, got %v", err)
	}
}

func TestRecordFeedback(t *testing.T) {
	ctx := context.Background()
	m, db := newTestManager(t, store.Options{}, Config{})

	id, err := m.LearnDecision(ctx, LearnRequest{
		Topic: "cache", Decision: "redis", Reasoning: "shared across nodes", Confidence: 0.6,
	})
	if err != nil {
		t.Fatalf("LearnDecision failed: %v", err)
	}

	outcome, err := m.RecordFeedback(ctx, id, "that worked great")
	if err != nil {
		t.Fatalf("RecordFeedback failed: %v", err)
	}
	if outcome != store.OutcomeSuccess {
		t.Errorf("Expected success classification, got %q", outcome)
	}
	d, err := db.GetDecision(ctx, id)
	if err != nil {
		t.Fatalf("GetDecision failed: %v", err)
	}
	if d.Confidence <= 0.6 {
		t.Errorf("Expected confidence to rise, got %v", d.Confidence)
	}

	outcome, err = m.RecordFeedback(ctx, id, "let me think about this")
	if err != nil {
		t.Fatalf("RecordFeedback failed: %v", err)
	}
	if outcome != "" {
		t.Errorf("Expected no classification, got %q", outcome)
	}
}

func TestRecordFeedback_OutsideAttributionWindow(t *testing.T) {
	ctx := context.Background()
	m, db := newTestManager(t, store.Options{}, Config{})

	old := &store.Decision{
		ID:         "stale-1",
		Topic:      "logging",
		Decision:   "structured logs",
		Reasoning:  "grep fatigue",
		Confidence: 0.6,
		CreatedAt:  time.Now().Add(-2 * time.Hour),
	}
	if err := db.InsertDecision(ctx, old); err != nil {
		t.Fatalf("InsertDecision failed: %v", err)
	}

	outcome, err := m.RecordFeedback(ctx, old.ID, "that failed badly")
	if err != nil {
		t.Fatalf("RecordFeedback failed: %v", err)
	}
	if outcome != "" {
		t.Errorf("Expected stale feedback to be ignored, got %q", outcome)
	}

	d, err := db.GetDecision(ctx, old.ID)
	if err != nil {
		t.Fatalf("GetDecision failed: %v", err)
	}
	if d.Confidence != 0.6 {
		t.Errorf("Expected confidence unchanged, got %v", d.Confidence)
	}
}

func TestLearnDecision_DisabledSkipsEnrichment(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{queue: [][]float32{{1, 0, 0}}}
	m, db := newTestManager(t, store.Options{VectorDim: 3}, Config{
		Embedder: emb,
		Disabled: true,
	})

	if _, err := m.LearnDecision(ctx, LearnRequest{
		Topic: "t", Decision: "x", Reasoning: "y", Confidence: 0.5,
	}); err != nil {
		t.Fatalf("LearnDecision failed: %v", err)
	}

	if emb.calls != 0 {
		t.Errorf("Expected no embed calls when disabled, got %d", emb.calls)
	}
	count, err := db.EdgeCount(ctx)
	if err != nil {
		t.Fatalf("EdgeCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no edges when disabled, got %d", count)
	}
}

func TestNewDecisionID(t *testing.T) {
	a := newDecisionID("DB Choice!")
	b := newDecisionID("DB Choice!")
	if a == b {
		t.Errorf("Expected distinct IDs, got %q twice", a)
	}
	if a[:9] != "db-choice" {
		t.Errorf("Expected slug prefix, got %q", a)
	}
}
