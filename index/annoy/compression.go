package annoy

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType defines the compression algorithm used for the persisted
// payload.
type CompressionType uint8

const (
	// CompressionNone indicates no compression.
	CompressionNone CompressionType = 0
	// CompressionLZ4 indicates LZ4 block compression (fast).
	CompressionLZ4 CompressionType = 1
	// CompressionZstd indicates Zstandard block compression (better ratio).
	CompressionZstd CompressionType = 2
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionLZ4:
		return "LZ4"
	case CompressionZstd:
		return "Zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// Payload block format: [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 means the data is stored uncompressed.
const blockHeaderSize = 8

var errBlockTruncated = errors.New("annoy: truncated payload block")

// compressPayload compresses data using the given algorithm and prepends the
// block header. Incompressible data is stored uncompressed.
func compressPayload(data []byte, compression CompressionType) ([]byte, error) {
	var compressed []byte

	switch compression {
	case CompressionNone:
		// Stored as-is below.
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		buf := make([]byte, bound)
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("annoy: lz4 compression failed: %w", err)
		}
		if n > 0 {
			compressed = buf[:n]
		}
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("annoy: zstd init failed: %w", err)
		}
		compressed = enc.EncodeAll(data, nil)
		_ = enc.Close()
	default:
		return nil, fmt.Errorf("annoy: unsupported compression type: %v", compression)
	}

	if len(compressed) == 0 || len(compressed) >= len(data) {
		// Incompressible (or compression disabled): store uncompressed.
		out := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(out[4:], 0)
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

// decompressPayload reverses compressPayload.
func decompressPayload(block []byte, compression CompressionType) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, errBlockTruncated
	}

	uncompressedSize := binary.LittleEndian.Uint32(block[0:])
	compressedSize := binary.LittleEndian.Uint32(block[4:])
	data := block[blockHeaderSize:]

	if compressedSize == 0 {
		if uint32(len(data)) != uncompressedSize {
			return nil, errBlockTruncated
		}
		return data, nil
	}
	if uint32(len(data)) != compressedSize {
		return nil, errBlockTruncated
	}

	switch compression {
	case CompressionLZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("annoy: lz4 decompression failed: %w", err)
		}
		if uint32(n) != uncompressedSize {
			return nil, errBlockTruncated
		}
		return out, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("annoy: zstd init failed: %w", err)
		}
		defer dec.Close()

		out, err := dec.DecodeAll(data, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("annoy: zstd decompression failed: %w", err)
		}
		if uint32(len(out)) != uncompressedSize {
			return nil, errBlockTruncated
		}
		return out, nil
	default:
		return nil, fmt.Errorf("annoy: unsupported compression type: %v", compression)
	}
}
