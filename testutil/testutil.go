package testutil

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
)

// RNG encapsulates a seeded random number generator.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillUniform fills dst with random values in range [0, 1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// RandomVectors returns n random vectors of the given dimensionality.
func (r *RNG) RandomVectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dim)
		r.FillUniform(out[i])
	}
	return out
}

// StubEncoder is a deterministic encoder.Encoder for tests.
//
// Texts registered with Set return their fixed vector; any other text maps
// to a pseudo-random vector derived from an FNV hash of the text, so
// repeated calls always agree.
type StubEncoder struct {
	dim     int
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewStubEncoder creates a stub encoder producing vectors of the given
// dimensionality.
func NewStubEncoder(dim int) *StubEncoder {
	return &StubEncoder{
		dim:     dim,
		vectors: make(map[string][]float32),
	}
}

// Set registers a fixed vector for the given text.
// The vector length must equal the encoder dimensionality.
func (e *StubEncoder) Set(text string, vec []float32) *StubEncoder {
	if len(vec) != e.dim {
		panic("testutil: stub vector length does not match encoder dimension")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = vec
	return e
}

// Encode returns the registered vector for text, or a deterministic
// hash-derived vector for unregistered texts.
func (e *StubEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	vec, ok := e.vectors[text]
	e.mu.RUnlock()

	if ok {
		out := make([]float32, e.dim)
		copy(out, vec)
		return out, nil
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	out := make([]float32, e.dim)
	for i := range out {
		out[i] = rng.Float32()
	}
	return out, nil
}

// Dimension returns the encoder dimensionality.
func (e *StubEncoder) Dimension() int { return e.dim }
