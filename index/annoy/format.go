package annoy

import (
	"errors"
	"fmt"

	"github.com/hupe1980/conceptdb/distance"
)

const (
	// MagicNumber identifies conceptdb index files (ASCII: "ANN1").
	MagicNumber = 0x414E4E31
	// FormatVersion is the current file format version (v1.0.0).
	FormatVersion = 0x00010000
)

var (
	// ErrInvalidMagic is returned when a file does not start with MagicNumber.
	ErrInvalidMagic = errors.New("annoy: invalid magic number")
	// ErrInvalidVersion is returned for unsupported format versions.
	ErrInvalidVersion = errors.New("annoy: unsupported format version")
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("annoy: k must be positive")
)

// ErrDimensionMismatch indicates a vector/query/file dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("annoy: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrMetricMismatch indicates that a persisted index was built with a
// different similarity metric than the one configured.
type ErrMetricMismatch struct {
	Expected distance.Metric
	Actual   distance.Metric
}

func (e *ErrMetricMismatch) Error() string {
	return fmt.Sprintf("annoy: metric mismatch: expected %v, got %v", e.Expected, e.Actual)
}

// ErrChecksumMismatch is returned when payload verification fails.
type ErrChecksumMismatch struct {
	Expected uint32
	Actual   uint32
}

func (e *ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("annoy: checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// fileHeader is the fixed-size header at the start of every index file.
type fileHeader struct {
	Magic       uint32 // 0x414E4E31 ("ANN1")
	Version     uint32 // File format version
	Metric      uint8  // distance.Metric the forest was built with
	Compression uint8  // CompressionType of the payload
	Padding1    [2]byte
	Dimension   uint32 // Vector dimensionality
	NumTrees    uint32 // Trees in the forest
	ItemCount   uint64 // Total number of indexed items
	PayloadSize uint64 // Size of the (compressed) payload block
	Checksum    uint32 // CRC32 (IEEE) of the payload block
	Padding2    [4]byte
}
