package annoy

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/conceptdb/distance"
)

// Item is one (id, vector) pair indexed by the forest.
type Item struct {
	ID     int64
	Vector []float32
}

// Options contains configuration options for the annoy index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all builds and queries.
	Dimension int

	// Metric is the similarity metric. It is fixed per index instance;
	// mixing metrics across build and query is a caller error and is not
	// detected internally.
	Metric distance.Metric

	// NumTrees is the number of random-projection trees in the forest.
	// More trees improve recall at the cost of build time and file size.
	NumTrees int

	// LeafSize is the maximum number of items held in a leaf node.
	LeafSize int

	// Seed makes tree construction deterministic for a fixed item set.
	Seed int64

	// SearchK caps the number of candidates inspected per query.
	// Zero selects NumTrees * k * 8.
	SearchK int

	// Compression selects the payload compression for persisted files.
	Compression CompressionType
}

// DefaultOptions contains the default configuration options for the annoy
// index. NumTrees defaults to 10 with the angular metric.
var DefaultOptions = Options{
	Metric:      distance.MetricAngular,
	NumTrees:    10,
	LeafSize:    16,
	Seed:        42,
	Compression: CompressionZstd,
}

// node is one tree node. Internal nodes carry a splitting hyperplane and
// child offsets; leaves carry item ids.
type node struct {
	normal []float32 // nil for leaf nodes
	left   int32
	right  int32
	ids    []int64 // leaf payload
}

func (n *node) isLeaf() bool { return n.normal == nil }

type tree struct {
	nodes []node
	root  int32
}

// Index is an Annoy-style random-projection forest.
//
// Build fully replaces the forest; a failed build leaves the previous
// forest queryable. The zero value is not usable; use New.
type Index struct {
	opts   Options
	distFn distance.Func

	mu    sync.RWMutex
	items []Item
	byID  map[int64][]float32
	trees []tree
}

// New creates a new, empty annoy index.
// Dimension is required and must be set at creation time.
func New(optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("annoy: dimension must be positive, got %d", opts.Dimension)
	}
	if opts.NumTrees <= 0 {
		return nil, fmt.Errorf("annoy: tree count must be positive, got %d", opts.NumTrees)
	}
	if opts.LeafSize < 2 {
		return nil, fmt.Errorf("annoy: leaf size must be at least 2, got %d", opts.LeafSize)
	}

	distFn, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	return &Index{
		opts:   opts,
		distFn: distFn,
		byID:   make(map[int64][]float32),
	}, nil
}

// Dimension returns the configured vector dimensionality.
func (i *Index) Dimension() int { return i.opts.Dimension }

// Metric returns the configured similarity metric.
func (i *Index) Metric() distance.Metric { return i.opts.Metric }

// Len returns the number of indexed items.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.items)
}

// normalized returns whether stored vectors and queries are L2-normalized
// before use. Angular and cosine searches operate on the unit sphere.
func (i *Index) normalized() bool {
	return i.opts.Metric == distance.MetricAngular || i.opts.Metric == distance.MetricCosine
}

// Build discards any existing forest and constructs a new one over exactly
// the given items.
//
// The new forest is staged off to the side and swapped in only on success:
// if Build fails, the previous forest remains queryable. Construction is
// deterministic for a fixed seed, metric and item set. Trees are built in
// parallel, but Build itself blocks until the forest is complete.
func (i *Index) Build(items []Item) error {
	staged := make([]Item, len(items))
	byID := make(map[int64][]float32, len(items))

	for n, it := range items {
		if len(it.Vector) != i.opts.Dimension {
			return &ErrDimensionMismatch{Expected: i.opts.Dimension, Actual: len(it.Vector)}
		}
		if _, ok := byID[it.ID]; ok {
			return fmt.Errorf("annoy: duplicate id %d", it.ID)
		}

		vec := make([]float32, len(it.Vector))
		copy(vec, it.Vector)
		if i.normalized() {
			// Zero vectors cannot be normalized; they are kept as-is and
			// rank last under the angular distance convention.
			distance.NormalizeL2InPlace(vec)
		}

		staged[n] = Item{ID: it.ID, Vector: vec}
		byID[it.ID] = vec
	}

	trees := make([]tree, i.opts.NumTrees)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range trees {
		g.Go(func() error {
			b := &treeBuilder{
				items:    staged,
				leafSize: i.opts.LeafSize,
				rng:      rand.New(rand.NewSource(i.opts.Seed + int64(t))),
			}
			idxs := make([]int32, len(staged))
			for n := range idxs {
				idxs[n] = int32(n)
			}
			root := b.build(idxs)
			trees[t] = tree{nodes: b.nodes, root: root}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	i.mu.Lock()
	i.items = staged
	i.byID = byID
	i.trees = trees
	i.mu.Unlock()

	return nil
}

// treeBuilder constructs a single random-projection tree.
type treeBuilder struct {
	items    []Item
	leafSize int
	rng      *rand.Rand
	nodes    []node
}

func (b *treeBuilder) leaf(idxs []int32) int32 {
	ids := make([]int64, len(idxs))
	for n, idx := range idxs {
		ids[n] = b.items[idx].ID
	}
	b.nodes = append(b.nodes, node{left: -1, right: -1, ids: ids})
	return int32(len(b.nodes) - 1)
}

func (b *treeBuilder) build(idxs []int32) int32 {
	if len(idxs) <= b.leafSize {
		return b.leaf(idxs)
	}

	// Split by the hyperplane between two randomly chosen items. A few
	// attempts guard against picking identical points.
	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		a := b.items[idxs[b.rng.Intn(len(idxs))]].Vector
		c := b.items[idxs[b.rng.Intn(len(idxs))]].Vector

		normal := make([]float32, len(a))
		for n := range normal {
			normal[n] = a[n] - c[n]
		}
		if !distance.NormalizeL2InPlace(normal) {
			continue
		}

		var left, right []int32
		for _, idx := range idxs {
			margin := distance.Dot(normal, b.items[idx].Vector)
			switch {
			case margin > 0:
				left = append(left, idx)
			case margin < 0:
				right = append(right, idx)
			default:
				if b.rng.Intn(2) == 0 {
					left = append(left, idx)
				} else {
					right = append(right, idx)
				}
			}
		}
		if len(left) == 0 || len(right) == 0 {
			continue
		}

		l := b.build(left)
		r := b.build(right)
		b.nodes = append(b.nodes, node{normal: normal, left: l, right: r})
		return int32(len(b.nodes) - 1)
	}

	// Degenerate population (all points identical): give up splitting.
	return b.leaf(idxs)
}

// pqEntry is a pending tree node during query traversal, prioritized by the
// worst margin along the path from the root.
type pqEntry struct {
	priority float32
	tree     int32
	node     int32
}

type traversalQueue []pqEntry

func (q traversalQueue) Len() int            { return len(q) }
func (q traversalQueue) Less(a, b int) bool  { return q[a].priority > q[b].priority }
func (q traversalQueue) Swap(a, b int)       { q[a], q[b] = q[b], q[a] }
func (q *traversalQueue) Push(x any)         { *q = append(*q, x.(pqEntry)) }
func (q *traversalQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// resultHeap keeps the k nearest candidates seen so far (max-heap on
// distance, ties broken by id so results are deterministic).
type resultEntry struct {
	id   int64
	dist float32
}

type resultHeap []resultEntry

func (h resultHeap) Len() int { return len(h) }
func (h resultHeap) Less(a, b int) bool {
	if h[a].dist != h[b].dist {
		return h[a].dist > h[b].dist
	}
	return h[a].id > h[b].id
}
func (h resultHeap) Swap(a, b int) { h[a], h[b] = h[b], h[a] }
func (h *resultHeap) Push(x any)   { *h = append(*h, x.(resultEntry)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Query returns up to k item ids ordered nearest-first by the configured
// metric. If fewer than k items are indexed, it returns as many as exist,
// down to zero; an empty index yields an empty result, not an error.
func (i *Index) Query(vector []float32, k int) ([]int64, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(vector) != i.opts.Dimension {
		return nil, &ErrDimensionMismatch{Expected: i.opts.Dimension, Actual: len(vector)}
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.items) == 0 {
		return []int64{}, nil
	}

	query := vector
	if i.normalized() {
		if normalized, ok := distance.NormalizeL2Copy(vector); ok {
			query = normalized
		}
	}

	searchK := i.opts.SearchK
	if searchK <= 0 {
		searchK = i.opts.NumTrees * k * 8
	}
	if searchK < k {
		searchK = k
	}

	candidates := i.collectCandidates(query, searchK)

	// Exact re-ranking of the candidate union.
	h := make(resultHeap, 0, k+1)
	heap.Init(&h)

	it := candidates.Iterator()
	for it.HasNext() {
		id := int64(it.Next())
		vec, ok := i.byID[id]
		if !ok {
			continue
		}
		heap.Push(&h, resultEntry{id: id, dist: i.distFn(query, vec)})
		if h.Len() > k {
			heap.Pop(&h)
		}
	}

	out := make([]int64, h.Len())
	for n := len(out) - 1; n >= 0; n-- {
		out[n] = heap.Pop(&h).(resultEntry).id
	}
	return out, nil
}

// collectCandidates walks all trees best-first, pooling leaf contents into
// a single bitmap until searchK distinct candidates are gathered or the
// forest is exhausted.
func (i *Index) collectCandidates(query []float32, searchK int) *roaring64.Bitmap {
	candidates := roaring64.New()

	q := make(traversalQueue, 0, len(i.trees)*2)
	heap.Init(&q)
	for t := range i.trees {
		heap.Push(&q, pqEntry{priority: math.MaxFloat32, tree: int32(t), node: i.trees[t].root})
	}

	for q.Len() > 0 && candidates.GetCardinality() < uint64(searchK) {
		e := heap.Pop(&q).(pqEntry)
		n := &i.trees[e.tree].nodes[e.node]

		if n.isLeaf() {
			for _, id := range n.ids {
				candidates.Add(uint64(id))
			}
			continue
		}

		margin := distance.Dot(n.normal, query)
		heap.Push(&q, pqEntry{priority: min(e.priority, margin), tree: e.tree, node: n.left})
		heap.Push(&q, pqEntry{priority: min(e.priority, -margin), tree: e.tree, node: n.right})
	}

	return candidates
}
