package record

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/conceptdb/metadata"
)

func openTestStore(t *testing.T, dim int) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "concepts.db")
	s, err := Open(context.Background(), path, func(o *Options) {
		o.Dimension = dim
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 3)

	md := metadata.Metadata{
		"category": metadata.String("test"),
		"attempt":  metadata.Int(1),
		"score":    metadata.Float(2), // whole float must stay a float
	}

	id, err := s.Store(ctx, []float32{0.1, 0.2, 0.3}, md, "hello world")
	require.NoError(t, err)
	require.Positive(t, id)

	rec, err := s.Fetch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, rec.Vector)
	assert.Equal(t, md, rec.Metadata)
	assert.Equal(t, "hello world", rec.RawText)
}

func TestStoreMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)

	var prev int64
	for i := 0; i < 5; i++ {
		id, err := s.Store(ctx, []float32{1, 2}, nil, "text")
		require.NoError(t, err)
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestStoreDimensionEnforced(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 3)

	_, err := s.Store(ctx, []float32{1, 2}, nil, "short")
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
}

func TestFetchNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)

	_, err := s.Fetch(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAllIsRestartable(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)

	want := map[int64][]float32{}
	for i := 0; i < 3; i++ {
		vec := []float32{float32(i), float32(i + 1)}
		id, err := s.Store(ctx, vec, nil, "t")
		require.NoError(t, err)
		want[id] = vec
	}

	// Two full passes over the same sequence must both see everything.
	seq := s.All(ctx)
	for pass := 0; pass < 2; pass++ {
		got := map[int64][]float32{}
		for item, err := range seq {
			require.NoError(t, err)
			got[item.ID] = item.Vector
		}
		assert.Equal(t, want, got, "pass %d", pass)
	}
}

func TestOpenExistingDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "concepts.db")

	s, err := Open(ctx, path, func(o *Options) { o.Dimension = 3 })
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(ctx, path, func(o *Options) { o.Dimension = 5 })
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 5, dm.Actual)
}

func TestOpenInvalidDimension(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Store(ctx, []float32{1, 2}, nil, "a")
	require.NoError(t, err)

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
