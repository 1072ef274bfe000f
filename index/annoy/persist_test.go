package annoy

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/conceptdb/distance"
	"github.com/hupe1980/conceptdb/testutil"
)

func buildTestForest(t *testing.T, optFns ...func(o *Options)) *Index {
	t.Helper()

	rng := testutil.NewRNG(3)
	items := make([]Item, 100)
	for n := range items {
		vec := make([]float32, 6)
		rng.FillUniform(vec)
		items[n] = Item{ID: int64(n + 1), Vector: vec}
	}

	idx := newTestIndex(t, 6, optFns...)
	require.NoError(t, idx.Build(items))
	return idx
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, compression := range []CompressionType{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			idx := buildTestForest(t, func(o *Options) {
				o.Compression = compression
			})

			var buf bytes.Buffer
			_, err := idx.WriteTo(&buf)
			require.NoError(t, err)

			loaded := newTestIndex(t, 6)
			_, err = loaded.ReadFrom(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			require.Equal(t, idx.Len(), loaded.Len())

			query := []float32{0.4, 0.2, 0.9, 0.1, 0.5, 0.3}
			want, err := idx.Query(query, 10)
			require.NoError(t, err)
			got, err := loaded.Query(query, 10)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestSaveLoadFile(t *testing.T) {
	idx := buildTestForest(t)
	path := filepath.Join(t.TempDir(), "concepts.db.annoy")

	require.NoError(t, idx.SaveFile(path))

	loaded := newTestIndex(t, 6)
	require.NoError(t, loaded.LoadFile(path))
	assert.Equal(t, idx.Len(), loaded.Len())
}

func TestLoadFileMissing(t *testing.T) {
	idx := newTestIndex(t, 6)
	err := idx.LoadFile(filepath.Join(t.TempDir(), "nope.annoy"))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadTruncated(t *testing.T) {
	idx := buildTestForest(t)

	var buf bytes.Buffer
	_, err := idx.WriteTo(&buf)
	require.NoError(t, err)
	data := buf.Bytes()

	for _, cut := range []int{0, 10, len(data) / 2, len(data) - 1} {
		loaded := newTestIndex(t, 6)
		_, err := loaded.ReadFrom(bytes.NewReader(data[:cut]))
		require.Error(t, err, "cut at %d", cut)
		assert.Zero(t, loaded.Len())
	}
}

func TestLoadBadMagic(t *testing.T) {
	idx := buildTestForest(t)

	var buf bytes.Buffer
	_, err := idx.WriteTo(&buf)
	require.NoError(t, err)

	data := buf.Bytes()
	data[0] ^= 0xFF

	loaded := newTestIndex(t, 6)
	_, err = loaded.ReadFrom(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrInvalidMagic)
}

func TestLoadCorruptPayload(t *testing.T) {
	idx := buildTestForest(t)

	var buf bytes.Buffer
	_, err := idx.WriteTo(&buf)
	require.NoError(t, err)

	data := buf.Bytes()
	data[len(data)-1] ^= 0xFF

	loaded := newTestIndex(t, 6)
	_, err = loaded.ReadFrom(bytes.NewReader(data))
	var cm *ErrChecksumMismatch
	require.ErrorAs(t, err, &cm)
}

func TestLoadCorruptHeaderFails(t *testing.T) {
	idx := buildTestForest(t)

	var buf bytes.Buffer
	_, err := idx.WriteTo(&buf)
	require.NoError(t, err)
	valid := buf.Bytes()

	// Header field offsets, per the fileHeader layout.
	fields := []struct {
		name   string
		offset int
		width  int
	}{
		{"NumTrees", 16, 4},
		{"ItemCount", 20, 8},
		{"PayloadSize", 28, 8},
	}

	for _, f := range fields {
		t.Run(f.name, func(t *testing.T) {
			data := append([]byte(nil), valid...)
			for n := 0; n < f.width; n++ {
				data[f.offset+n] = 0xFF
			}

			loaded := newTestIndex(t, 6)
			require.NotPanics(t, func() {
				_, err := loaded.ReadFrom(bytes.NewReader(data))
				require.Error(t, err)
			})
			assert.Zero(t, loaded.Len())
		})
	}

	t.Run("OversizedPayloadSize", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint64(data[28:], 1<<60)

		loaded := newTestIndex(t, 6)
		require.NotPanics(t, func() {
			_, err := loaded.ReadFrom(bytes.NewReader(data))
			require.Error(t, err)
		})
		assert.Zero(t, loaded.Len())
	})
}

func TestLoadDimensionMismatch(t *testing.T) {
	idx := buildTestForest(t)
	path := filepath.Join(t.TempDir(), "idx.annoy")
	require.NoError(t, idx.SaveFile(path))

	loaded := newTestIndex(t, 12)
	err := loaded.LoadFile(path)
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 12, dm.Expected)
	assert.Equal(t, 6, dm.Actual)
}

func TestLoadMetricMismatch(t *testing.T) {
	idx := buildTestForest(t)
	path := filepath.Join(t.TempDir(), "idx.annoy")
	require.NoError(t, idx.SaveFile(path))

	loaded := newTestIndex(t, 6, func(o *Options) {
		o.Metric = distance.MetricSquaredL2
	})
	err := loaded.LoadFile(path)
	var mm *ErrMetricMismatch
	require.ErrorAs(t, err, &mm)
}

func TestSaveFileAtomic(t *testing.T) {
	idx := buildTestForest(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.annoy")

	require.NoError(t, idx.SaveFile(path))
	require.NoError(t, idx.SaveFile(path)) // overwrite in place

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "idx.annoy", entries[0].Name())
}

func TestEmptyForestRoundTrip(t *testing.T) {
	idx := newTestIndex(t, 6)
	require.NoError(t, idx.Build(nil))

	var buf bytes.Buffer
	_, err := idx.WriteTo(&buf)
	require.NoError(t, err)

	loaded := newTestIndex(t, 6)
	_, err = loaded.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Zero(t, loaded.Len())

	ids, err := loaded.Query([]float32{0, 0, 0, 0, 0, 1}, 3)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
