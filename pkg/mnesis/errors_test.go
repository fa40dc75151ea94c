package mnesis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dan-solli/mnesis/pkg/graph"
	"github.com/dan-solli/mnesis/pkg/store"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation sentinel", fmt.Errorf("%w: topic is required", graph.ErrValidation), ErrTypeValidation},
		{"not found sentinel", fmt.Errorf("decision x: %w", store.ErrDecisionNotFound), ErrTypeNotFound},
		{"vector unavailable", store.ErrVectorUnavailable, ErrTypeDegraded},
		{"deadline", context.DeadlineExceeded, ErrTypeTimeout},
		{"timeout string", errors.New("request timeout after 5s"), ErrTypeTimeout},
		{"embedding", errors.New("embedding request: api error 429"), ErrTypeEmbedding},
		{"rate limit", errors.New("rate limit exceeded"), ErrTypeEmbedding},
		{"sqlite", errors.New("database is locked"), ErrTypeStorage},
		{"constraint", errors.New("UNIQUE constraint failed: decisions.id"), ErrTypeStorage},
		{"invalid", errors.New("invalid outcome \"meh\""), ErrTypeValidation},
		{"unknown", errors.New("something odd"), ErrTypeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyError(tc.err); got != tc.want {
				t.Errorf("ClassifyError(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}
