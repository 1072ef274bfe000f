package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hupe1980/conceptdb/index/annoy"
	"github.com/hupe1980/conceptdb/record"
)

// IndexSuffix is appended to the record store path to derive the persisted
// index file path.
const IndexSuffix = ".annoy"

// Options contains configuration options for the lifecycle manager.
type Options struct {
	// IndexPath overrides the persisted index file location.
	// Defaults to the record store path plus IndexSuffix.
	IndexPath string

	// Logger receives rebuild and recovery events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Manager coordinates the record store and the vector index: it loads a
// previously persisted index when valid, rebuilds it from the full record
// set when not, and persists every freshly built index.
type Manager struct {
	store  *record.Store
	index  *annoy.Index
	path   string
	logger *slog.Logger
}

// NewManager creates a lifecycle manager binding the given store and index.
func NewManager(store *record.Store, index *annoy.Index, optFns ...func(o *Options)) *Manager {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.IndexPath == "" {
		opts.IndexPath = store.Path() + IndexSuffix
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Manager{
		store:  store,
		index:  index,
		path:   opts.IndexPath,
		logger: opts.Logger,
	}
}

// IndexPath returns the persisted index file location.
func (m *Manager) IndexPath() string { return m.path }

// EnsureLoaded makes the index usable: it attempts to load the persisted
// index file and falls back to a full rebuild if the file is missing,
// corrupt, or was built for a different dimensionality or metric.
//
// Load failures are recovered locally and never surfaced as fatal.
func (m *Manager) EnsureLoaded(ctx context.Context) error {
	err := m.index.LoadFile(m.path)
	if err == nil {
		m.logger.DebugContext(ctx, "index loaded",
			"path", m.path,
			"items", m.index.Len(),
		)
		return nil
	}

	m.logger.InfoContext(ctx, "index not loadable, rebuilding",
		"path", m.path,
		"error", err,
	)
	return m.Rebuild(ctx)
}

// Rebuild reconstructs the index from the complete current record set and
// persists it.
//
// Cost scales with the total number of records, not with the size of any
// single write. Callers needing write throughput should batch inserts via
// the record store and call Rebuild once afterwards.
func (m *Manager) Rebuild(ctx context.Context) error {
	var items []annoy.Item
	for item, err := range m.store.All(ctx) {
		if err != nil {
			return fmt.Errorf("lifecycle: rebuild iteration failed: %w", err)
		}
		items = append(items, annoy.Item{ID: item.ID, Vector: item.Vector})
	}

	if err := m.index.Build(items); err != nil {
		return fmt.Errorf("lifecycle: rebuild failed: %w", err)
	}

	if err := m.index.SaveFile(m.path); err != nil {
		return fmt.Errorf("lifecycle: failed to persist index: %w", err)
	}

	m.logger.DebugContext(ctx, "index rebuilt",
		"path", m.path,
		"items", len(items),
	)
	return nil
}
