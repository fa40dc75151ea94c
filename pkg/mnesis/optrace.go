package mnesis

import (
	"time"

	"github.com/dan-solli/mnesis/pkg/trace"
)

// opTrace captures per-stage timing for a single engine operation. Span
// names are stable: "embed", "write", "link", "query", "score".
type opTrace struct {
	// Spans contains timing data for each stage of the operation
	Spans []trace.SpanRecord

	// TotalDurationMs is the summed span time in milliseconds
	TotalDurationMs int64
}

// newOpTrace creates an operation trace with empty spans
func newOpTrace() *opTrace {
	return &opTrace{
		Spans: make([]trace.SpanRecord, 0),
	}
}

// addSpan appends a completed span to the trace
func (t *opTrace) addSpan(span trace.SpanRecord) {
	t.Spans = append(t.Spans, span)
	t.TotalDurationMs += span.DurationMs
}

// spanTimer is a helper for measuring span duration
type spanTimer struct {
	name    string
	start   int64 // Unix time in milliseconds
	trace   *opTrace
	enabled bool
}

// newSpanTimer creates a timer for a named span
func newSpanTimer(name string, tr *opTrace, enabled bool) *spanTimer {
	if !enabled || tr == nil {
		return &spanTimer{enabled: false}
	}
	return &spanTimer{
		name:    name,
		start:   timeNowMs(),
		trace:   tr,
		enabled: true,
	}
}

// finish completes the span and records it to the trace. Errors are
// reduced to their classified family; exported spans carry no messages.
func (st *spanTimer) finish(ok bool, err error, counters map[string]int64) {
	if !st.enabled {
		return
	}

	duration := timeNowMs() - st.start
	span := trace.SpanRecord{
		Name:       st.name,
		DurationMs: duration,
		OK:         ok,
		Counters:   counters,
	}
	if err != nil {
		span.ErrorType = ClassifyError(err)
	}
	st.trace.addSpan(span)
}

// timeNowMs returns current Unix time in milliseconds
func timeNowMs() int64 {
	return time.Now().UnixMilli()
}
