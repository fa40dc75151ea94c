package mnesis

import (
	"context"
	"errors"
	"strings"

	"github.com/dan-solli/mnesis/pkg/graph"
	"github.com/dan-solli/mnesis/pkg/store"
)

// Error type constants for classification
const (
	ErrTypeValidation = "validation"
	ErrTypeNotFound   = "not_found"
	ErrTypeStorage    = "storage"
	ErrTypeEmbedding  = "embedding"
	ErrTypeTimeout    = "timeout"
	ErrTypeDegraded   = "degraded"
	ErrTypeUnknown    = "unknown"
)

// ClassifyError inspects an error and returns its type classification.
// This enables grouping errors by category in metrics and traces.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, graph.ErrValidation):
		return ErrTypeValidation
	case errors.Is(err, store.ErrDecisionNotFound):
		return ErrTypeNotFound
	case errors.Is(err, store.ErrVectorUnavailable):
		return ErrTypeDegraded
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTypeTimeout
	}

	errStrLower := strings.ToLower(err.Error())

	if strings.Contains(errStrLower, "timeout") || strings.Contains(errStrLower, "deadline exceeded") {
		return ErrTypeTimeout
	}

	// Embedding provider errors (HTTP clients)
	if strings.Contains(errStrLower, "embedding") ||
		strings.Contains(errStrLower, "api error") ||
		strings.Contains(errStrLower, "rate limit") ||
		strings.Contains(errStrLower, "connection refused") {
		return ErrTypeEmbedding
	}

	// SQLite errors
	if strings.Contains(errStrLower, "sql") ||
		strings.Contains(errStrLower, "database") ||
		strings.Contains(errStrLower, "constraint") ||
		strings.Contains(errStrLower, "locked") {
		return ErrTypeStorage
	}

	if strings.Contains(errStrLower, "invalid") ||
		strings.Contains(errStrLower, "required") ||
		strings.Contains(errStrLower, "out of range") {
		return ErrTypeValidation
	}

	return ErrTypeUnknown
}
