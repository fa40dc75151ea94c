package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"
)

// VectorMatch is a vector search hit with its cosine similarity.
type VectorMatch struct {
	DecisionID string
	Similarity float64
}

// InsertEmbedding stores or replaces the embedding for a decision.
// The call is best-effort by contract: its failure must never unwind the
// owning decision insert, so it always runs outside that transaction.
func (s *DB) InsertEmbedding(ctx context.Context, decisionID string, embedding []float32) error {
	if !s.vectorCapable {
		return ErrVectorUnavailable
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_vectors (decision_id, embedding, dimensions, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(decision_id) DO UPDATE SET embedding = excluded.embedding,
			dimensions = excluded.dimensions, created_at = excluded.created_at
	`, decisionID, serializeEmbedding(embedding), len(embedding), time.Now())
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

// VectorSearch returns up to limit decisions ranked by cosine similarity
// to the query embedding. When the store was opened without vector
// capability it returns ErrVectorUnavailable: a degraded state the caller
// is expected to have gated on VectorCapable already.
func (s *DB) VectorSearch(ctx context.Context, query []float32, limit int) ([]VectorMatch, error) {
	if !s.vectorCapable {
		return nil, ErrVectorUnavailable
	}
	if len(query) == 0 {
		return []VectorMatch{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT decision_id, embedding FROM decision_vectors
	`)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		embedding := deserializeEmbedding(blob)
		if embedding == nil {
			continue
		}
		matches = append(matches, VectorMatch{
			DecisionID: id,
			Similarity: CosineSimilarity(query, embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vectors: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// GetEmbedding returns the stored embedding for a decision, or nil when
// none exists.
func (s *DB) GetEmbedding(ctx context.Context, decisionID string) ([]float32, error) {
	if !s.vectorCapable {
		return nil, ErrVectorUnavailable
	}

	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT embedding FROM decision_vectors WHERE decision_id = ?", decisionID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding: %w", err)
	}
	return deserializeEmbedding(blob), nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched or empty vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// serializeEmbedding converts a float32 slice to a little-endian BLOB.
func serializeEmbedding(embedding []float32) []byte {
	blob := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeEmbedding converts a BLOB back to a float32 slice.
// Returns nil for malformed data.
func deserializeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return embedding
}
