package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubEncoderDeterministic(t *testing.T) {
	ctx := context.Background()
	enc := NewStubEncoder(4)

	a, err := enc.Encode(ctx, "some text")
	require.NoError(t, err)
	b, err := enc.Encode(ctx, "some text")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 4)

	c, err := enc.Encode(ctx, "other text")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestStubEncoderSet(t *testing.T) {
	enc := NewStubEncoder(2).Set("apple", []float32{1, 0})

	vec, err := enc.Encode(context.Background(), "apple")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)

	assert.Panics(t, func() {
		enc.Set("bad", []float32{1, 2, 3})
	})
}

func TestRNG(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)

	va := make([]float32, 8)
	vb := make([]float32, 8)
	a.FillUniform(va)
	b.FillUniform(vb)
	assert.Equal(t, va, vb)

	vecs := a.RandomVectors(3, 5)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 5)
}
