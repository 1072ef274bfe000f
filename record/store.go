package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/conceptdb/metadata"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDimensionMismatch indicates that the store was created with a different
// embedding dimensionality than the one requested at open.
type ErrDimensionMismatch struct {
	Expected int // dimensionality persisted in the store
	Actual   int // dimensionality requested by the caller
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("record: store dimension is %d, got %d", e.Expected, e.Actual)
}

// Record is one persisted interaction.
type Record struct {
	ID       int64
	Vector   []float32
	Metadata metadata.Metadata
	RawText  string
}

// Item is an (id, vector) pair yielded during full iteration.
type Item struct {
	ID     int64
	Vector []float32
}

// Options contains configuration options for the record store.
type Options struct {
	// Dimension is the fixed embedding dimensionality for this store.
	// It must be > 0 and is enforced for all stored vectors.
	Dimension int
}

// Store is a SQLite-backed durable record store.
//
// Every Store call commits before returning, so a crash immediately after
// a successful Store never loses the record.
type Store struct {
	db        *sql.DB
	path      string
	dimension int
}

// Open opens (or creates) the record store at the given path.
//
// Schema creation is idempotent and runs on every open. If the store
// already exists, its persisted dimensionality must match the configured
// one; otherwise *ErrDimensionMismatch is returned.
func Open(ctx context.Context, path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("record: dimension must be positive, got %d", opts.Dimension)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("record: failed to open database: %w", err)
	}

	s := &Store{
		db:        db,
		path:      path,
		dimension: opts.Dimension,
	}

	if err := s.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("record: failed to create schema: %w", err)
	}

	if err := s.checkDimension(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) createTable(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS concepts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vector BLOB NOT NULL,
		metadata TEXT NOT NULL,
		raw_text TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// checkDimension records the store dimensionality on first open and rejects
// a mismatching dimensionality on subsequent opens.
func (s *Store) checkDimension(ctx context.Context) error {
	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM store_meta WHERE key = 'dimension'`).Scan(&stored)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO store_meta (key, value) VALUES ('dimension', ?)`,
			strconv.Itoa(s.dimension))
		if err != nil {
			return fmt.Errorf("record: failed to persist dimension: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("record: failed to read store meta: %w", err)
	}

	dim, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("record: invalid persisted dimension %q: %w", stored, err)
	}
	if dim != s.dimension {
		return &ErrDimensionMismatch{Expected: dim, Actual: s.dimension}
	}
	return nil
}

// Store persists a new record and returns its freshly assigned id.
//
// The insert is a single SQLite transaction: a crash before completion
// leaves no partially visible record.
func (s *Store) Store(ctx context.Context, vector []float32, md metadata.Metadata, rawText string) (int64, error) {
	if len(vector) != s.dimension {
		return 0, &ErrDimensionMismatch{Expected: s.dimension, Actual: len(vector)}
	}

	mdJSON, err := metadata.Encode(md)
	if err != nil {
		return 0, fmt.Errorf("record: failed to encode metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO concepts (vector, metadata, raw_text)
		VALUES (?, ?, ?)
	`, EncodeVector(vector), string(mdJSON), rawText)
	if err != nil {
		return 0, fmt.Errorf("record: insert failed: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record: failed to read assigned id: %w", err)
	}
	return id, nil
}

// Fetch returns the record with the given id, or ErrNotFound.
func (s *Store) Fetch(ctx context.Context, id int64) (*Record, error) {
	var (
		blob    []byte
		mdJSON  string
		rawText string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT vector, metadata, raw_text FROM concepts WHERE id = ?`, id).
		Scan(&blob, &mdJSON, &rawText)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	case err != nil:
		return nil, fmt.Errorf("record: fetch failed: %w", err)
	}

	vec, err := DecodeVector(blob)
	if err != nil {
		return nil, err
	}

	md, err := metadata.Decode([]byte(mdJSON))
	if err != nil {
		return nil, fmt.Errorf("record: failed to decode metadata: %w", err)
	}

	return &Record{ID: id, Vector: vec, Metadata: md, RawText: rawText}, nil
}

// All returns a restartable lazy sequence of all (id, vector) pairs in id
// order. It is used for full index rebuilds; each invocation of the
// returned sequence runs a fresh query.
func (s *Store) All(ctx context.Context) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, vector FROM concepts ORDER BY id`)
		if err != nil {
			yield(Item{}, fmt.Errorf("record: iteration failed: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id   int64
				blob []byte
			)
			if err := rows.Scan(&id, &blob); err != nil {
				yield(Item{}, fmt.Errorf("record: scan failed: %w", err))
				return
			}

			vec, err := DecodeVector(blob)
			if err != nil {
				yield(Item{}, err)
				return
			}

			if !yield(Item{ID: id, Vector: vec}, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(Item{}, fmt.Errorf("record: iteration failed: %w", err))
		}
	}
}

// Count returns the number of persisted records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM concepts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("record: count failed: %w", err)
	}
	return count, nil
}

// Dimension returns the fixed embedding dimensionality of this store.
func (s *Store) Dimension() int { return s.dimension }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
