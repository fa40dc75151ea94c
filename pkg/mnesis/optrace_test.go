package mnesis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dan-solli/mnesis/pkg/trace"
)

func TestNewOpTrace(t *testing.T) {
	tr := newOpTrace()
	assert.NotNil(t, tr)
	assert.NotNil(t, tr.Spans)
	assert.Equal(t, 0, len(tr.Spans))
	assert.Equal(t, int64(0), tr.TotalDurationMs)
}

func TestOpTraceAddSpan(t *testing.T) {
	tr := newOpTrace()

	span1 := trace.SpanRecord{
		Name:       "embed",
		DurationMs: 100,
		OK:         true,
		Counters:   map[string]int64{"count": 5},
	}
	tr.addSpan(span1)

	assert.Equal(t, 1, len(tr.Spans))
	assert.Equal(t, int64(100), tr.TotalDurationMs)
	assert.Equal(t, "embed", tr.Spans[0].Name)

	span2 := trace.SpanRecord{
		Name:       "write",
		DurationMs: 50,
		OK:         false,
		ErrorType:  ErrTypeStorage,
	}
	tr.addSpan(span2)

	assert.Equal(t, 2, len(tr.Spans))
	assert.Equal(t, int64(150), tr.TotalDurationMs)
	assert.Equal(t, ErrTypeStorage, tr.Spans[1].ErrorType)
}

func TestSpanTimerDisabled(t *testing.T) {
	// When tracing is disabled, span timer should be a no-op
	tr := newOpTrace()
	timer := newSpanTimer("test", tr, false)

	assert.False(t, timer.enabled)

	// Finish should not add span
	timer.finish(true, nil, map[string]int64{"count": 1})
	assert.Equal(t, 0, len(tr.Spans))
	assert.Equal(t, int64(0), tr.TotalDurationMs)
}

func TestSpanTimerEnabled(t *testing.T) {
	tr := newOpTrace()
	timer := newSpanTimer("query", tr, true)

	assert.True(t, timer.enabled)
	assert.Equal(t, "query", timer.name)

	// Simulate some work
	time.Sleep(10 * time.Millisecond)

	counters := map[string]int64{"candidateCount": 42}
	timer.finish(true, nil, counters)

	assert.Equal(t, 1, len(tr.Spans))
	assert.Equal(t, "query", tr.Spans[0].Name)
	assert.True(t, tr.Spans[0].OK)
	assert.GreaterOrEqual(t, tr.Spans[0].DurationMs, int64(10))
	assert.Equal(t, int64(42), tr.Spans[0].Counters["candidateCount"])
	assert.Equal(t, "", tr.Spans[0].ErrorType)
}

func TestSpanTimerWithError(t *testing.T) {
	tr := newOpTrace()
	timer := newSpanTimer("write", tr, true)

	timer.finish(false, assert.AnError, nil)

	assert.Equal(t, 1, len(tr.Spans))
	assert.False(t, tr.Spans[0].OK)
	// Error text never reaches the span, only its classified family.
	assert.Equal(t, ErrTypeUnknown, tr.Spans[0].ErrorType)
}

func TestSpanTimerNilTrace(t *testing.T) {
	// Should not panic when trace is nil
	timer := newSpanTimer("test", nil, true)
	assert.False(t, timer.enabled)

	timer.finish(true, nil, nil)
	// Should not panic
}

func TestTimeNowMs(t *testing.T) {
	before := time.Now().UnixMilli()
	actual := timeNowMs()
	after := time.Now().UnixMilli()

	assert.GreaterOrEqual(t, actual, before)
	assert.LessOrEqual(t, actual, after)
}
