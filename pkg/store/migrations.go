package store

import (
	"fmt"
	"strings"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "decisions: core decision records",
		SQL: `
CREATE TABLE decisions (
    id             TEXT PRIMARY KEY,
    topic          TEXT NOT NULL,
    decision       TEXT NOT NULL,
    reasoning      TEXT NOT NULL,
    confidence     REAL NOT NULL DEFAULT 0.5,
    outcome        TEXT,
    failure_reason TEXT,
    limitation     TEXT,
    supersedes     TEXT,
    superseded_by  TEXT,
    refined_from   TEXT,
    session_id     TEXT,
    created_at     DATETIME NOT NULL,
    updated_at     DATETIME NOT NULL
);

CREATE INDEX idx_decisions_topic      ON decisions(topic);
CREATE INDEX idx_decisions_created_at ON decisions(created_at DESC);
CREATE INDEX idx_decisions_active     ON decisions(topic, created_at DESC)
    WHERE superseded_by IS NULL;
`,
	},
	{
		Version:     2,
		Description: "decision_edges: supersedes/refines/contradicts relationships",
		SQL: `
CREATE TABLE decision_edges (
    id           TEXT PRIMARY KEY,
    from_id      TEXT NOT NULL,
    to_id        TEXT NOT NULL,
    relationship TEXT NOT NULL CHECK (relationship IN ('supersedes', 'refines', 'contradicts')),
    reason       TEXT,
    created_at   DATETIME NOT NULL,
    FOREIGN KEY (from_id) REFERENCES decisions(id),
    FOREIGN KEY (to_id)   REFERENCES decisions(id)
);

CREATE UNIQUE INDEX idx_edges_unique ON decision_edges(from_id, to_id, relationship);
CREATE INDEX idx_edges_from ON decision_edges(from_id);
CREATE INDEX idx_edges_to   ON decision_edges(to_id);
`,
	},
	{
		Version:     3,
		Description: "decision_vectors: embedding side table for semantic search",
		SQL: `
CREATE TABLE decision_vectors (
    decision_id TEXT PRIMARY KEY,
    embedding   BLOB NOT NULL,
    dimensions  INTEGER NOT NULL,
    created_at  DATETIME NOT NULL,
    FOREIGN KEY (decision_id) REFERENCES decisions(id)
);
`,
	},
	{
		Version:     4,
		Description: "decisions: access tracking columns",
		SQL: `
ALTER TABLE decisions ADD COLUMN access_count INTEGER NOT NULL DEFAULT 0;
ALTER TABLE decisions ADD COLUMN last_accessed_at DATETIME;
`,
	},
}

// migrate applies pending migrations in ascending version order, one
// transaction per migration. Re-running the full set is a no-op: applied
// versions are recorded in schema_versions, and a duplicate-column error
// from an ALTER is treated as already applied rather than fatal.
func (s *DB) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			if !isDuplicateColumn(err) {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
			}
			// Column exists from a partially recorded run; record the
			// version and move on.
		}

		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}

// SchemaVersion returns the highest applied migration version.
func (s *DB) SchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
