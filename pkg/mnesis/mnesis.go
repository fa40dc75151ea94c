// Package mnesis provides a local decision memory engine for AI assistants
package mnesis

import (
	"log/slog"
	"time"

	"github.com/dan-solli/mnesis/pkg/embeddings"
	"github.com/dan-solli/mnesis/pkg/graph"
	"github.com/dan-solli/mnesis/pkg/metrics"
	"github.com/dan-solli/mnesis/pkg/store"
	"github.com/dan-solli/mnesis/pkg/tier"
	"github.com/dan-solli/mnesis/pkg/trace"
)

// Config holds configuration for the engine
type Config struct {
	// DBPath is the SQLite database file (":memory:" for ephemeral use).
	// Only consulted by Open; New takes an already opened store.
	DBPath string

	// VectorDim requests vector capability with embeddings of the given
	// dimension. Zero opens the store without vector support (Tier 2).
	VectorDim int

	// Disabled switches off all automatic context features (Tier 3).
	// Direct topic lookups keep working.
	Disabled bool

	// EmbedTimeout bounds every embedding call (default: 5s). Expiry
	// resolves to "no vector" and the operation degrades to Tier 2.
	EmbedTimeout time.Duration

	// SuggestLimit is the default number of fully detailed suggestions
	// (default: 3); the rest is rolled up.
	SuggestLimit int

	// SuggestThreshold drops vector matches below this similarity before
	// scoring (default: 0, keep every match).
	SuggestThreshold float64

	// RecencyWeight blends similarity with age decay in suggest
	// (default: 0.3).
	RecencyWeight float64

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger

	// Collector receives operation metrics (default: no-op).
	Collector metrics.Collector

	// Exporter receives sanitized operation traces (default: none).
	Exporter trace.Exporter
}

func (c *Config) applyDefaults() {
	if c.EmbedTimeout == 0 {
		c.EmbedTimeout = 5 * time.Second
	}
	if c.SuggestLimit == 0 {
		c.SuggestLimit = 3
	}
	if c.RecencyWeight == 0 {
		c.RecencyWeight = 0.3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Collector == nil {
		c.Collector = metrics.NewNoopCollector()
	}
}

// Engine is the main entry point for the decision memory system
type Engine struct {
	cfg      Config
	db       *store.DB
	graph    *graph.Manager
	embedder embeddings.Client
	ownsDB   bool
}

// New creates an engine over explicit handles. The store and embedder are
// injected; there are no package-level singletons. embedder may be nil,
// the engine then runs at Tier 2.
func New(cfg Config, db *store.DB, embedder embeddings.Client) *Engine {
	cfg.applyDefaults()

	mgr := graph.NewManager(db, graph.Config{
		Embedder:     embedder,
		Logger:       cfg.Logger,
		Disabled:     cfg.Disabled,
		EmbedTimeout: cfg.EmbedTimeout,
	})

	return &Engine{
		cfg:      cfg,
		db:       db,
		graph:    mgr,
		embedder: embedder,
	}
}

// Open opens (or creates) the store at cfg.DBPath and builds an engine
// that owns it; Close then closes the store.
func Open(cfg Config, embedder embeddings.Client) (*Engine, error) {
	db, err := store.Open(cfg.DBPath, store.Options{VectorDim: cfg.VectorDim})
	if err != nil {
		return nil, err
	}
	e := New(cfg, db, embedder)
	e.ownsDB = true
	return e, nil
}

// Tier reports the current operating tier, recomputed from configuration
// and the store capability flag.
func (e *Engine) Tier() tier.Tier {
	return tier.Compute(e.cfg.Disabled, e.db.VectorCapable(), e.embedder != nil)
}

// Store returns the underlying storage handle.
func (e *Engine) Store() *store.DB {
	return e.db
}

// Graph returns the decision graph manager.
func (e *Engine) Graph() *graph.Manager {
	return e.graph
}

// Close releases resources. Only stores opened by Open are closed.
func (e *Engine) Close() error {
	if e.cfg.Exporter != nil {
		if err := e.cfg.Exporter.Close(); err != nil {
			e.cfg.Logger.Warn("trace exporter close failed", "error", err)
		}
	}
	if e.ownsDB {
		return e.db.Close()
	}
	return nil
}
