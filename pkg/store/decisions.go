package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Outcome values a decision may carry. An empty outcome means no feedback
// has been recorded yet.
const (
	OutcomePending    = "pending"
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomePartial    = "partial"
	OutcomeSuperseded = "superseded"
)

// ValidOutcome reports whether s is a member of the outcome enum.
func ValidOutcome(s string) bool {
	switch s {
	case OutcomePending, OutcomeSuccess, OutcomeFailure, OutcomePartial, OutcomeSuperseded:
		return true
	}
	return false
}

// Decision is a recorded choice with its reasoning and lineage pointers.
// Records are append-only: lifecycle mutations touch outcome, confidence,
// superseded_by and the access counters, never the recorded choice itself.
type Decision struct {
	ID             string     `json:"id"`
	Topic          string     `json:"topic"`
	Decision       string     `json:"decision"`
	Reasoning      string     `json:"reasoning"`
	Confidence     float64    `json:"confidence"`
	Outcome        string     `json:"outcome,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	Limitation     string     `json:"limitation,omitempty"`
	Supersedes     string     `json:"supersedes,omitempty"`
	SupersededBy   string     `json:"superseded_by,omitempty"`
	RefinedFrom    []string   `json:"refined_from,omitempty"`
	SessionID      string     `json:"session_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

const decisionColumns = `id, topic, decision, reasoning, confidence, outcome,
	failure_reason, limitation, supersedes, superseded_by, refined_from,
	session_id, created_at, updated_at, access_count, last_accessed_at`

func scanDecision(row interface {
	Scan(dest ...interface{}) error
}) (*Decision, error) {
	var d Decision
	var outcome, failureReason, limitation, supersedes, supersededBy, refinedFrom, sessionID sql.NullString
	var lastAccessed sql.NullTime

	err := row.Scan(
		&d.ID, &d.Topic, &d.Decision, &d.Reasoning, &d.Confidence, &outcome,
		&failureReason, &limitation, &supersedes, &supersededBy, &refinedFrom,
		&sessionID, &d.CreatedAt, &d.UpdatedAt, &d.AccessCount, &lastAccessed,
	)
	if err != nil {
		return nil, err
	}

	d.Outcome = outcome.String
	d.FailureReason = failureReason.String
	d.Limitation = limitation.String
	d.Supersedes = supersedes.String
	d.SupersededBy = supersededBy.String
	d.SessionID = sessionID.String
	if lastAccessed.Valid {
		d.LastAccessedAt = &lastAccessed.Time
	}
	if refinedFrom.Valid && refinedFrom.String != "" {
		if err := json.Unmarshal([]byte(refinedFrom.String), &d.RefinedFrom); err != nil {
			return nil, fmt.Errorf("unmarshal refined_from: %w", err)
		}
	}

	return &d, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// InsertDecision appends a decision record. Timestamps are filled in when
// zero. refined_from is JSON-encoded only at this storage boundary.
func (s *DB) InsertDecision(ctx context.Context, d *Decision) error {
	return s.insertDecision(ctx, s.db, d)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *DB) insertDecision(ctx context.Context, ex execer, d *Decision) error {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}

	var refinedFrom interface{}
	if len(d.RefinedFrom) > 0 {
		b, err := json.Marshal(d.RefinedFrom)
		if err != nil {
			return fmt.Errorf("marshal refined_from: %w", err)
		}
		refinedFrom = string(b)
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO decisions (id, topic, decision, reasoning, confidence, outcome,
			failure_reason, limitation, supersedes, superseded_by, refined_from,
			session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID, d.Topic, d.Decision, d.Reasoning, d.Confidence, nullable(d.Outcome),
		nullable(d.FailureReason), nullable(d.Limitation), nullable(d.Supersedes), nullable(d.SupersededBy),
		refinedFrom, nullable(d.SessionID), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// InsertWithSupersession atomically appends a decision that replaces prevID:
// the insert, the supersedes edge (new -> previous) and the previous row's
// superseded_by pointer flip commit together or not at all. The edge is
// written before the pointer flip so superseded_by never references a
// missing edge.
func (s *DB) InsertWithSupersession(ctx context.Context, d *Decision, prevID, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	d.Supersedes = prevID
	if err := s.insertDecision(ctx, tx, d); err != nil {
		return err
	}

	if err := s.insertEdge(ctx, tx, &Edge{
		FromID:       d.ID,
		ToID:         prevID,
		Relationship: RelSupersedes,
		Reason:       reason,
	}); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE decisions
		SET superseded_by = ?, outcome = ?, updated_at = ?
		WHERE id = ?
	`, d.ID, OutcomeSuperseded, time.Now(), prevID)
	if err != nil {
		return fmt.Errorf("flip superseded_by: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("superseded decision %s: %w", prevID, ErrDecisionNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit supersession: %w", err)
	}
	return nil
}

// GetDecision retrieves a decision by ID. Unknown IDs surface
// ErrDecisionNotFound, never an empty success.
func (s *DB) GetDecision(ctx context.Context, id string) (*Decision, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+decisionColumns+" FROM decisions WHERE id = ?", id)

	d, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("decision %s: %w", id, ErrDecisionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get decision: %w", err)
	}
	return d, nil
}

// CurrentDecision returns the most recent non-superseded decision for a
// topic, or nil when the topic has no history.
func (s *DB) CurrentDecision(ctx context.Context, topic string) (*Decision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+decisionColumns+`
		FROM decisions
		WHERE topic = ? AND superseded_by IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, topic)

	d, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current decision: %w", err)
	}
	return d, nil
}

// ActiveByTopic returns all non-superseded decisions for a topic, newest
// first.
func (s *DB) ActiveByTopic(ctx context.Context, topic string) ([]*Decision, error) {
	return s.queryDecisions(ctx, `
		SELECT `+decisionColumns+`
		FROM decisions
		WHERE topic = ? AND superseded_by IS NULL
		ORDER BY created_at DESC, id DESC
	`, topic)
}

// ListActive returns the most recent non-superseded decisions across all
// topics.
func (s *DB) ListActive(ctx context.Context, limit int) ([]*Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryDecisions(ctx, `
		SELECT `+decisionColumns+`
		FROM decisions
		WHERE superseded_by IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
}

// DecisionsSince returns decisions created after the given time, newest
// first. Used for the trailing-window semantic conflict pass.
func (s *DB) DecisionsSince(ctx context.Context, since time.Time, limit int) ([]*Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryDecisions(ctx, `
		SELECT `+decisionColumns+`
		FROM decisions
		WHERE created_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, since, limit)
}

// SearchText performs a case-insensitive substring match over topic and
// decision text. This is the lexical fallback when semantic search is
// unavailable.
func (s *DB) SearchText(ctx context.Context, query string, limit int) ([]*Decision, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + strings.ToLower(query) + "%"
	return s.queryDecisions(ctx, `
		SELECT `+decisionColumns+`
		FROM decisions
		WHERE superseded_by IS NULL
		  AND (LOWER(topic) LIKE ? OR LOWER(decision) LIKE ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, pattern, pattern, limit)
}

func (s *DB) queryDecisions(ctx context.Context, query string, args ...interface{}) ([]*Decision, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return decisions, nil
}

// UpdateOutcome records outcome feedback on a decision. The outcome must
// be a member of the enum and the ID must exist.
func (s *DB) UpdateOutcome(ctx context.Context, id, outcome, failureReason, limitation string) error {
	if !ValidOutcome(outcome) {
		return fmt.Errorf("invalid outcome %q", outcome)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE decisions
		SET outcome = ?,
		    failure_reason = COALESCE(?, failure_reason),
		    limitation = COALESCE(?, limitation),
		    updated_at = ?
		WHERE id = ?
	`, outcome, nullable(failureReason), nullable(limitation), time.Now(), id)
	if err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("decision %s: %w", id, ErrDecisionNotFound)
	}
	return nil
}

// UpdateConfidence sets a decision's confidence scalar.
func (s *DB) UpdateConfidence(ctx context.Context, id string, confidence float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE decisions SET confidence = ?, updated_at = ? WHERE id = ?
	`, confidence, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update confidence: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("decision %s: %w", id, ErrDecisionNotFound)
	}
	return nil
}

// TouchDecisions bumps access counters for a batch of decisions. Access
// tracking is best-effort; callers log and ignore failures.
func (s *DB) TouchDecisions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids)+1)
	args[0] = time.Now()
	for i, id := range ids {
		placeholders[i] = "?"
		args[i+1] = id
	}

	query := fmt.Sprintf(`
		UPDATE decisions
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE id IN (%s)
	`, strings.Join(placeholders, ","))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch decisions: %w", err)
	}
	return nil
}

// DecisionCount returns the total number of decision records.
func (s *DB) DecisionCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions").Scan(&count); err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return count, nil
}
