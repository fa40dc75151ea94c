package mnesis

import (
	"context"
	"time"

	"github.com/dan-solli/mnesis/pkg/graph"
	"github.com/dan-solli/mnesis/pkg/rank"
	"github.com/dan-solli/mnesis/pkg/store"
	"github.com/dan-solli/mnesis/pkg/trace"
)

// candidateLimit bounds how many active decisions a suggest call scores.
const candidateLimit = 100

// SaveRequest carries the inputs to Save.
type SaveRequest struct {
	Topic       string
	Decision    string
	Reasoning   string
	Confidence  float64
	Outcome     string
	SessionID   string
	RefinedFrom []string
}

// Save records a decision, superseding the current one on the same topic.
// Errors on missing required text or out-of-range confidence before any
// write happens.
func (e *Engine) Save(ctx context.Context, req SaveRequest) (string, error) {
	start := time.Now()
	tr := newOpTrace()

	writeTimer := newSpanTimer("write", tr, true)
	id, err := e.graph.LearnDecision(ctx, graph.LearnRequest{
		Topic:       req.Topic,
		Decision:    req.Decision,
		Reasoning:   req.Reasoning,
		Confidence:  req.Confidence,
		Outcome:     req.Outcome,
		SessionID:   req.SessionID,
		RefinedFrom: req.RefinedFrom,
	})
	writeTimer.finish(err == nil, err, nil)

	e.finishOp(ctx, "save", start, err, tr, map[string]interface{}{"decisionId": id})
	if err != nil {
		return "", err
	}

	e.updateStorageGauges(ctx)
	return id, nil
}

// Recall returns the full decision graph for a topic: the supersedes chain
// newest first plus refines/contradicts edges. A topic with no history
// yields an empty graph. Recalled decisions get their access counters
// bumped best-effort.
func (e *Engine) Recall(ctx context.Context, topic string) (*graph.DecisionGraph, error) {
	start := time.Now()
	tr := newOpTrace()

	queryTimer := newSpanTimer("query", tr, true)
	g, err := e.graph.GetDecisionGraph(ctx, topic)
	queryTimer.finish(err == nil, err, nil)

	e.finishOp(ctx, "recall", start, err, tr, nil)
	if err != nil {
		return nil, err
	}

	if len(g.Chain) > 0 {
		ids := make([]string, len(g.Chain))
		for i, d := range g.Chain {
			ids[i] = d.ID
		}
		if err := e.db.TouchDecisions(ctx, ids); err != nil {
			e.cfg.Logger.Warn("access counter update failed", "error", err)
		}
	}
	return g, nil
}

// SuggestOptions override the configured suggest defaults per call.
type SuggestOptions struct {
	Limit         int
	Threshold     float64
	RecencyWeight float64
}

// SuggestResult is the outcome of a suggest call: the top decisions in
// full detail and a bounded rollup of everything else that cleared the
// score floor.
type SuggestResult struct {
	Decisions []rank.Scored     `json:"decisions"`
	Tail      *rank.TailSummary `json:"tail,omitempty"`
}

// Suggest ranks stored decisions against a free-text query. At Tier 1 the
// query is embedded and similarity feeds the score; at Tier 2 (or when the
// embedding call fails or times out) a lexical substring fallback runs
// instead; at Tier 3 the result is empty. Never errors on degradation.
func (e *Engine) Suggest(ctx context.Context, queryText string, opts SuggestOptions) (*SuggestResult, error) {
	start := time.Now()
	if opts.Limit == 0 {
		opts.Limit = e.cfg.SuggestLimit
	}
	if opts.Threshold == 0 {
		opts.Threshold = e.cfg.SuggestThreshold
	}
	if opts.RecencyWeight == 0 {
		opts.RecencyWeight = e.cfg.RecencyWeight
	}

	result := &SuggestResult{}
	t := e.Tier()
	if !t.AutoContext() {
		e.finishOp(ctx, "suggest", start, nil, nil, nil)
		return result, nil
	}

	tr := newOpTrace()
	var candidates []*store.Decision
	similarities := map[string]float64{}
	now := time.Now()

	var vec []float32
	if t.SemanticSearch() {
		embedTimer := newSpanTimer("embed", tr, true)
		vec = e.embedQuery(ctx, queryText)
		embedTimer.finish(vec != nil, nil, nil)
	}

	queryTimer := newSpanTimer("query", tr, true)
	if vec != nil {
		matches, err := e.db.VectorSearch(ctx, vec, candidateLimit)
		if err != nil {
			e.cfg.Logger.Warn("vector search failed, falling back to lexical", "error", err)
		} else {
			boost := rank.Boost{
				Weight:       opts.RecencyWeight,
				ScaleDays:    rank.DefaultBoost().ScaleDays,
				DecayAtScale: rank.DefaultBoost().DecayAtScale,
			}
			byID := map[string]float64{}
			for _, match := range matches {
				if match.Similarity < opts.Threshold {
					continue
				}
				byID[match.DecisionID] = match.Similarity
			}

			all, lerr := e.db.ListActive(ctx, candidateLimit)
			if lerr != nil {
				queryTimer.finish(false, lerr, nil)
				e.finishOp(ctx, "suggest", start, lerr, tr, nil)
				return nil, lerr
			}
			for _, d := range all {
				sim, ok := byID[d.ID]
				if !ok {
					continue
				}
				similarities[d.ID] = boost.Apply(sim, now.Sub(d.CreatedAt))
				candidates = append(candidates, d)
			}
		}
	}
	if candidates == nil {
		// Lexical fallback, also the Tier 2 path.
		found, err := e.db.SearchText(ctx, queryText, candidateLimit)
		if err != nil {
			queryTimer.finish(false, err, nil)
			e.finishOp(ctx, "suggest", start, err, tr, nil)
			return nil, err
		}
		candidates = found
	}
	queryTimer.finish(true, nil, map[string]int64{"candidateCount": int64(len(candidates))})

	scoreTimer := newSpanTimer("score", tr, true)
	scored := rank.Rank(candidates, similarities, now)
	top, tail := rank.Select(scored, opts.Limit)
	result.Decisions = top
	result.Tail = tail
	scoreTimer.finish(true, nil, map[string]int64{"resultsReturned": int64(len(top))})

	e.finishOp(ctx, "suggest", start, nil, tr, nil)

	if len(top) > 0 {
		ids := make([]string, len(top))
		for i, s := range top {
			ids[i] = s.Decision.ID
		}
		if err := e.db.TouchDecisions(ctx, ids); err != nil {
			e.cfg.Logger.Warn("access counter update failed", "error", err)
		}
	}
	return result, nil
}

// UpdateOutcome records outcome evidence for a decision and evolves its
// confidence. Errors if the id is unknown.
func (e *Engine) UpdateOutcome(ctx context.Context, id, outcome, detail string) error {
	start := time.Now()
	err := e.graph.UpdateOutcome(ctx, id, outcome, detail)
	e.finishOp(ctx, "update_outcome", start, err, nil, map[string]interface{}{"decisionId": id})
	return err
}

// RecordFeedback classifies free-text feedback into an outcome and applies
// it to a recent decision. Returns the classified outcome, or empty when
// the text matched no keyword family or the decision is too old to
// attribute.
func (e *Engine) RecordFeedback(ctx context.Context, id, feedback string) (string, error) {
	start := time.Now()
	outcome, err := e.graph.RecordFeedback(ctx, id, feedback)
	e.finishOp(ctx, "update_outcome", start, err, nil, map[string]interface{}{"decisionId": id})
	return outcome, err
}

// List returns the most recent non-superseded decisions across all topics.
func (e *Engine) List(ctx context.Context, limit int) ([]*store.Decision, error) {
	start := time.Now()
	decisions, err := e.db.ListActive(ctx, limit)
	e.finishOp(ctx, "list", start, err, nil, nil)
	return decisions, err
}

// embedQuery embeds a suggest query under the configured timeout. Failure
// resolves to nil and the caller falls back to the lexical path.
func (e *Engine) embedQuery(ctx context.Context, text string) []float32 {
	if e.embedder == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.EmbedTimeout)
	defer cancel()

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		e.cfg.Logger.Warn("query embedding failed", "error", err)
		return nil
	}
	return vec
}

// finishOp records metrics and exports a sanitized trace for a completed
// operation. Both are best-effort.
func (e *Engine) finishOp(ctx context.Context, op string, start time.Time, err error, tr *opTrace, ids map[string]interface{}) {
	durationMs := time.Since(start).Milliseconds()
	var spans []trace.SpanRecord
	if tr != nil {
		spans = tr.Spans
	}

	status := "success"
	errType := ""
	if err != nil {
		status = "error"
		errType = ClassifyError(err)
		e.cfg.Collector.RecordError(ctx, op, errType)
	}
	e.cfg.Collector.RecordOperation(ctx, op, status, durationMs)
	for _, span := range spans {
		e.cfg.Collector.RecordStage(ctx, op, span.Name, span.DurationMs)
	}

	if e.cfg.Exporter == nil {
		return
	}
	record := &trace.TraceRecord{
		Timestamp:   start,
		OperationID: newOperationID(),
		Operation:   op,
		DurationMs:  durationMs,
		Status:      status,
		ErrorType:   errType,
		Spans:       spans,
		IDs:         ids,
	}
	if exportErr := e.cfg.Exporter.Export(ctx, record); exportErr != nil {
		e.cfg.Logger.Warn("trace export failed", "error", exportErr)
	}
}

// updateStorageGauges refreshes the storage count gauges after a write.
func (e *Engine) updateStorageGauges(ctx context.Context) {
	if decisions, err := e.db.DecisionCount(ctx); err == nil {
		e.cfg.Collector.SetStorageCount(ctx, "decisions", decisions)
	}
	if edges, err := e.db.EdgeCount(ctx); err == nil {
		e.cfg.Collector.SetStorageCount(ctx, "edges", edges)
	}
}
