package conceptdb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/conceptdb/encoder"
	"github.com/hupe1980/conceptdb/index/annoy"
	"github.com/hupe1980/conceptdb/lifecycle"
	"github.com/hupe1980/conceptdb/metadata"
	"github.com/hupe1980/conceptdb/record"
)

// DefaultTopK is the number of search results returned when the caller
// does not request a specific k.
const DefaultTopK = 10

// Library is the facade over the record store, the vector index and the
// index lifecycle manager.
//
// All operations execute synchronously on the caller's goroutine; there is
// no background indexing. A write that has returned is immediately visible
// to a subsequent search on the same thread of control.
type Library struct {
	encoder encoder.Encoder
	store   *record.Store
	index   *annoy.Index
	manager *lifecycle.Manager
	logger  *Logger

	mu     sync.Mutex
	closed bool
}

// Open opens (or creates) a library at the given database path.
//
// The embedding dimensionality is discovered from the encoder. Opening an
// existing store whose dimensionality disagrees with the encoder fails
// with *ErrDimensionMismatch; a missing or stale persisted index is not an
// error and triggers a full rebuild instead.
func Open(ctx context.Context, path string, enc encoder.Encoder, optFns ...Option) (*Library, error) {
	if enc == nil {
		return nil, fmt.Errorf("conceptdb: encoder must not be nil")
	}

	dim := enc.Dimension()
	if dim <= 0 {
		return nil, fmt.Errorf("conceptdb: encoder reports invalid dimension %d", dim)
	}

	o := applyOptions(optFns)

	store, err := record.Open(ctx, path, func(ro *record.Options) {
		ro.Dimension = dim
	})
	if err != nil {
		return nil, translateError(err)
	}

	idx, err := annoy.New(append(append([]func(ao *annoy.Options){}, o.indexOptFns...), func(ao *annoy.Options) {
		ao.Dimension = dim
	})...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	manager := lifecycle.NewManager(store, idx, func(lo *lifecycle.Options) {
		lo.IndexPath = o.indexPath
		lo.Logger = o.logger.Logger
	})

	if err := manager.EnsureLoaded(ctx); err != nil {
		_ = store.Close()
		return nil, translateError(err)
	}

	o.logger.DebugContext(ctx, "library opened",
		"path", path,
		"dimension", dim,
		"records", idx.Len(),
	)

	return &Library{
		encoder: enc,
		store:   store,
		index:   idx,
		manager: manager,
		logger:  o.logger,
	}, nil
}

// AddInteraction encodes text, durably records it together with its
// metadata, rebuilds the vector index and returns the freshly assigned id.
//
// The write is not complete (and the id is not returned) until the rebuilt
// index has been persisted. If the durable write fails, no rebuild is
// triggered and no id is issued. If the rebuild itself fails, the record
// is already durable and the index heals on the next rebuild or reopen;
// the error is still surfaced.
func (l *Library) AddInteraction(ctx context.Context, text string, md metadata.Metadata) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}

	vector, err := l.encoder.Encode(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("conceptdb: encoding failed: %w", err)
	}

	id, err := l.store.Store(ctx, vector, md, text)
	if err != nil {
		err = translateError(err)
		l.logger.LogAddInteraction(ctx, 0, len(vector), err)
		return 0, err
	}

	if err := l.manager.Rebuild(ctx); err != nil {
		err = translateError(err)
		l.logger.LogAddInteraction(ctx, id, len(vector), err)
		return 0, err
	}

	l.logger.LogAddInteraction(ctx, id, len(vector), nil)
	return id, nil
}

// Search encodes the query text and returns up to topK records ordered
// nearest-first by the configured similarity metric. topK <= 0 selects
// DefaultTopK.
//
// Fewer than topK records (down to zero) is not an error. Ids returned by
// the index without a matching record are skipped silently.
func (l *Library) Search(ctx context.Context, query string, topK int) ([]record.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := l.encoder.Encode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("conceptdb: encoding failed: %w", err)
	}

	ids, err := l.index.Query(vector, topK)
	if err != nil {
		err = translateError(err)
		l.logger.LogSearch(ctx, topK, 0, err)
		return nil, err
	}

	results := make([]record.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := l.store.Fetch(ctx, id)
		if errors.Is(err, record.ErrNotFound) {
			continue
		}
		if err != nil {
			l.logger.LogSearch(ctx, topK, 0, err)
			return nil, err
		}
		results = append(results, *rec)
	}

	l.logger.LogSearch(ctx, topK, len(results), nil)
	return results, nil
}

// IndexPath returns the persisted index file location.
func (l *Library) IndexPath() string { return l.manager.IndexPath() }

// Close releases the underlying resources. Further operations return
// ErrClosed. Close is idempotent.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	return l.store.Close()
}
