package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Relationship types carried by decision edges.
const (
	RelSupersedes  = "supersedes"
	RelRefines     = "refines"
	RelContradicts = "contradicts"
)

// Edge is a directed relationship between two decisions. Multiple
// relationship types between the same pair are allowed; exact duplicates
// are suppressed so edge writes stay retry-safe.
type Edge struct {
	ID           string    `json:"id"`
	FromID       string    `json:"from_id"`
	ToID         string    `json:"to_id"`
	Relationship string    `json:"relationship"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AddEdge appends an edge. Re-adding the same (from, to, relationship)
// triple is a no-op.
func (s *DB) AddEdge(ctx context.Context, e *Edge) error {
	return s.insertEdge(ctx, s.db, e)
}

func (s *DB) insertEdge(ctx context.Context, ex execer, e *Edge) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := ex.ExecContext(ctx, `
		INSERT OR IGNORE INTO decision_edges (id, from_id, to_id, relationship, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.FromID, e.ToID, e.Relationship, nullable(e.Reason), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("add edge: %w", err)
	}
	return nil
}

// EdgesFor retrieves all edges incident to a decision, both directions.
func (s *DB) EdgesFor(ctx context.Context, decisionID string) ([]*Edge, error) {
	return s.queryEdges(ctx, `
		SELECT id, from_id, to_id, relationship, reason, created_at
		FROM decision_edges
		WHERE from_id = ? OR to_id = ?
		ORDER BY created_at, id
	`, decisionID, decisionID)
}

// EdgesForAll retrieves edges incident to any of the given decisions in a
// single query.
func (s *DB) EdgesForAll(ctx context.Context, decisionIDs []string) ([]*Edge, error) {
	if len(decisionIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(decisionIDs))
	args := make([]interface{}, 0, len(decisionIDs)*2)
	for i, id := range decisionIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	for _, id := range decisionIDs {
		args = append(args, id)
	}
	in := strings.Join(placeholders, ",")

	return s.queryEdges(ctx, fmt.Sprintf(`
		SELECT id, from_id, to_id, relationship, reason, created_at
		FROM decision_edges
		WHERE from_id IN (%[1]s) OR to_id IN (%[1]s)
		ORDER BY created_at, id
	`, in), args...)
}

// HasEdge reports whether the exact (from, to, relationship) triple exists.
func (s *DB) HasEdge(ctx context.Context, fromID, toID, relationship string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM decision_edges
		WHERE from_id = ? AND to_id = ? AND relationship = ?
	`, fromID, toID, relationship).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check edge: %w", err)
	}
	return count > 0, nil
}

func (s *DB) queryEdges(ctx context.Context, query string, args ...interface{}) ([]*Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var edges []*Edge
	for rows.Next() {
		var e Edge
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.FromID, &e.ToID, &e.Relationship, &reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Reason = reason.String
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}

// EdgeCount returns the total number of edges.
func (s *DB) EdgeCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decision_edges").Scan(&count); err != nil {
		return 0, fmt.Errorf("count edges: %w", err)
	}
	return count, nil
}
