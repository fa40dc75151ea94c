// Package embeddings provides text embedding clients for semantic decision
// search. The provider is optional: the engine runs degraded without one.
package embeddings

import "context"

// Client defines the interface for generating text embeddings.
type Client interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
