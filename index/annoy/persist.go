package annoy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/hupe1980/conceptdb/distance"
)

// WriteTo serializes the built forest to w in the opaque binary format
// described by format.go. It implements io.WriterTo.
func (i *Index) WriteTo(w io.Writer) (int64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	body, err := i.encodeBody()
	if err != nil {
		return 0, err
	}

	block, err := compressPayload(body, i.opts.Compression)
	if err != nil {
		return 0, err
	}

	header := fileHeader{
		Magic:       MagicNumber,
		Version:     FormatVersion,
		Metric:      uint8(i.opts.Metric),
		Compression: uint8(i.opts.Compression),
		Dimension:   uint32(i.opts.Dimension),
		NumTrees:    uint32(len(i.trees)),
		ItemCount:   uint64(len(i.items)),
		PayloadSize: uint64(len(block)),
		Checksum:    crc32.ChecksumIEEE(block),
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return 0, err
	}
	buf.Write(block)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadFrom deserializes a forest previously written by WriteTo.
//
// It fails cleanly with a typed error if the data is truncated, corrupt, or
// was built for a different dimensionality or metric; on failure the
// in-memory index is left untouched. It implements io.ReaderFrom.
func (i *Index) ReadFrom(r io.Reader) (int64, error) {
	var header fileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, fmt.Errorf("annoy: failed to read header: %w", err)
	}
	read := int64(binary.Size(header))

	if header.Magic != MagicNumber {
		return read, ErrInvalidMagic
	}
	if header.Version != FormatVersion {
		return read, fmt.Errorf("%w: 0x%08x", ErrInvalidVersion, header.Version)
	}
	if int(header.Dimension) != i.opts.Dimension {
		return read, &ErrDimensionMismatch{Expected: i.opts.Dimension, Actual: int(header.Dimension)}
	}
	if m := distance.Metric(header.Metric); m != i.opts.Metric {
		return read, &ErrMetricMismatch{Expected: i.opts.Metric, Actual: m}
	}

	// The header itself is not checksum-protected, so its fields cannot be
	// trusted for allocation sizes. Read at most PayloadSize bytes instead of
	// allocating PayloadSize up front.
	if header.PayloadSize > uint64(math.MaxInt64) {
		return read, fmt.Errorf("%w: implausible payload size %d", errCorruptPayload, header.PayloadSize)
	}
	block, err := io.ReadAll(io.LimitReader(r, int64(header.PayloadSize)))
	read += int64(len(block))
	if err != nil {
		return read, fmt.Errorf("annoy: failed to read payload: %w", err)
	}
	if uint64(len(block)) != header.PayloadSize {
		return read, fmt.Errorf("annoy: truncated payload: %w", io.ErrUnexpectedEOF)
	}

	if sum := crc32.ChecksumIEEE(block); sum != header.Checksum {
		return read, &ErrChecksumMismatch{Expected: header.Checksum, Actual: sum}
	}

	body, err := decompressPayload(block, CompressionType(header.Compression))
	if err != nil {
		return read, err
	}

	items, byID, trees, err := i.decodeBody(body, header)
	if err != nil {
		return read, err
	}

	i.mu.Lock()
	i.items = items
	i.byID = byID
	i.trees = trees
	i.mu.Unlock()

	return read, nil
}

// SaveFile atomically persists the forest to path (write to a temp file in
// the same directory, fsync, rename).
func (i *Index) SaveFile(path string) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("annoy: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := i.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("annoy: failed to write index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("annoy: failed to sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("annoy: failed to close index: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("annoy: failed to rename index: %w", err)
	}
	return nil
}

// LoadFile loads a forest persisted by SaveFile. A missing file is reported
// as an error satisfying errors.Is(err, fs.ErrNotExist).
func (i *Index) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("annoy: failed to open index file: %w", err)
	}
	defer f.Close()

	if _, err := i.ReadFrom(f); err != nil {
		return err
	}
	return nil
}

// encodeBody serializes items and trees into the uncompressed payload body.
func (i *Index) encodeBody() ([]byte, error) {
	var buf bytes.Buffer

	for _, it := range i.items {
		if err := binary.Write(&buf, binary.LittleEndian, it.ID); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, it.Vector); err != nil {
			return nil, err
		}
	}

	for _, t := range i.trees {
		if err := binary.Write(&buf, binary.LittleEndian, t.root); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(t.nodes))); err != nil {
			return nil, err
		}
		for _, n := range t.nodes {
			if n.isLeaf() {
				if err := buf.WriteByte(1); err != nil {
					return nil, err
				}
				if err := binary.Write(&buf, binary.LittleEndian, uint32(len(n.ids))); err != nil {
					return nil, err
				}
				if err := binary.Write(&buf, binary.LittleEndian, n.ids); err != nil {
					return nil, err
				}
			} else {
				if err := buf.WriteByte(0); err != nil {
					return nil, err
				}
				if err := binary.Write(&buf, binary.LittleEndian, n.left); err != nil {
					return nil, err
				}
				if err := binary.Write(&buf, binary.LittleEndian, n.right); err != nil {
					return nil, err
				}
				if err := binary.Write(&buf, binary.LittleEndian, n.normal); err != nil {
					return nil, err
				}
			}
		}
	}

	return buf.Bytes(), nil
}

var errCorruptPayload = fmt.Errorf("annoy: corrupt index payload")

// decodeBody reverses encodeBody, validating structural bounds as it goes.
func (i *Index) decodeBody(body []byte, header fileHeader) ([]Item, map[int64][]float32, []tree, error) {
	r := bytes.NewReader(body)
	dim := int(header.Dimension)

	// Bound the unverified header counts against what the decompressed body
	// can possibly hold before allocating.
	itemBytes := uint64(8 + 4*dim)
	if header.ItemCount > uint64(len(body))/itemBytes {
		return nil, nil, nil, errCorruptPayload
	}
	itemCount := int(header.ItemCount)

	items := make([]Item, itemCount)
	byID := make(map[int64][]float32, itemCount)
	for n := range items {
		var id int64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %w", errCorruptPayload, err)
		}
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %w", errCorruptPayload, err)
		}
		items[n] = Item{ID: id, Vector: vec}
		byID[id] = vec
	}

	// Every serialized tree occupies at least eight bytes (root + node count).
	remaining := uint64(len(body)) - header.ItemCount*itemBytes
	if uint64(header.NumTrees) > remaining/8 {
		return nil, nil, nil, errCorruptPayload
	}
	trees := make([]tree, header.NumTrees)
	for t := range trees {
		var root int32
		if err := binary.Read(r, binary.LittleEndian, &root); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %w", errCorruptPayload, err)
		}
		var nodeCount uint32
		if err := binary.Read(r, binary.LittleEndian, &nodeCount); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %w", errCorruptPayload, err)
		}
		// A forest over n items never needs more than 2n+1 nodes per tree.
		if int(nodeCount) > 2*itemCount+1 {
			return nil, nil, nil, errCorruptPayload
		}
		if root < 0 || int(root) >= int(nodeCount) {
			return nil, nil, nil, errCorruptPayload
		}

		nodes := make([]node, nodeCount)
		for ni := range nodes {
			kind, err := r.ReadByte()
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%w: %w", errCorruptPayload, err)
			}
			switch kind {
			case 1: // leaf
				var idCount uint32
				if err := binary.Read(r, binary.LittleEndian, &idCount); err != nil {
					return nil, nil, nil, fmt.Errorf("%w: %w", errCorruptPayload, err)
				}
				if int(idCount) > itemCount {
					return nil, nil, nil, errCorruptPayload
				}
				ids := make([]int64, idCount)
				if err := binary.Read(r, binary.LittleEndian, ids); err != nil {
					return nil, nil, nil, fmt.Errorf("%w: %w", errCorruptPayload, err)
				}
				nodes[ni] = node{left: -1, right: -1, ids: ids}
			case 0: // internal
				var left, right int32
				if err := binary.Read(r, binary.LittleEndian, &left); err != nil {
					return nil, nil, nil, fmt.Errorf("%w: %w", errCorruptPayload, err)
				}
				if err := binary.Read(r, binary.LittleEndian, &right); err != nil {
					return nil, nil, nil, fmt.Errorf("%w: %w", errCorruptPayload, err)
				}
				if left < 0 || int(left) >= int(nodeCount) || right < 0 || int(right) >= int(nodeCount) {
					return nil, nil, nil, errCorruptPayload
				}
				normal := make([]float32, dim)
				if err := binary.Read(r, binary.LittleEndian, normal); err != nil {
					return nil, nil, nil, fmt.Errorf("%w: %w", errCorruptPayload, err)
				}
				nodes[ni] = node{normal: normal, left: left, right: right}
			default:
				return nil, nil, nil, errCorruptPayload
			}
		}
		trees[t] = tree{nodes: nodes, root: root}
	}

	if r.Len() != 0 {
		return nil, nil, nil, errCorruptPayload
	}

	return items, byID, trees, nil
}
