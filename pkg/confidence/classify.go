package confidence

import (
	"strings"

	"github.com/dan-solli/mnesis/pkg/store"
)

// Keyword families for classifying free-text feedback. Families are
// checked in priority order failure, success, partial: mixed feedback like
// "works except it crashes" counts as failure.
var (
	failureKeywords = []string{
		"fail", "failed", "failing", "broke", "broken", "error",
		"crash", "crashed", "didn't work", "doesn't work", "does not work",
		"regression", "revert", "rolled back",
	}
	successKeywords = []string{
		"success", "succeeded", "worked", "works well", "works great",
		"fixed", "resolved", "passing", "all green", "no issues",
	}
	partialKeywords = []string{
		"partial", "partially", "mostly work", "mostly works",
		"some issues", "almost", "half", "kind of works", "sort of works",
	}
)

// ClassifyOutcome maps free-text feedback to an outcome. Returns the empty
// string when no family matches.
func ClassifyOutcome(feedback string) string {
	text := strings.ToLower(feedback)

	for _, kw := range failureKeywords {
		if strings.Contains(text, kw) {
			return store.OutcomeFailure
		}
	}
	for _, kw := range successKeywords {
		if strings.Contains(text, kw) {
			return store.OutcomeSuccess
		}
	}
	for _, kw := range partialKeywords {
		if strings.Contains(text, kw) {
			return store.OutcomePartial
		}
	}
	return ""
}
