// Package store provides the SQLite storage adapter for mnesis decisions.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrDecisionNotFound indicates that no decision exists for the given ID.
var ErrDecisionNotFound = errors.New("decision not found")

// ErrVectorUnavailable indicates the store was opened without vector
// capability. It represents a degraded state, not a storage failure.
var ErrVectorUnavailable = errors.New("vector search unavailable")

// Options configures a store at open time.
type Options struct {
	// VectorDim requests vector capability with embeddings of the given
	// dimension. Zero opens the store without vector support.
	VectorDim int
}

// DB is a handle to the mnesis SQLite database.
//
// Vector capability is negotiated exactly once at open time and exposed
// through VectorCapable. Callers must consult the flag instead of probing
// the vector path at runtime.
type DB struct {
	db            *sql.DB
	vectorCapable bool
	vectorDim     int
}

// Open opens (or creates) the database at path, configures pragmas,
// and applies pending migrations.
func Open(path string, opts Options) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	db := &DB{
		db:            sqlDB,
		vectorCapable: opts.VectorDim > 0,
		vectorDim:     opts.VectorDim,
	}

	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// OpenMemory opens an in-memory database, primarily for tests.
func OpenMemory(opts Options) (*DB, error) {
	return Open(":memory:", opts)
}

func (s *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// VectorCapable reports whether the store was opened with vector support.
// The flag is fixed at open time.
func (s *DB) VectorCapable() bool {
	return s.vectorCapable
}

// VectorDim returns the negotiated embedding dimension (0 when the store
// is not vector capable).
func (s *DB) VectorDim() int {
	return s.vectorDim
}

// SQL returns the underlying database connection for advanced operations.
func (s *DB) SQL() *sql.DB {
	return s.db
}

// Close releases database resources.
func (s *DB) Close() error {
	return s.db.Close()
}
