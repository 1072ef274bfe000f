package metadata

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	t.Run("Scalars", func(t *testing.T) {
		v, err := FromAny(nil)
		require.NoError(t, err)
		assert.Equal(t, KindNull, v.Kind)

		v, err = FromAny(42)
		require.NoError(t, err)
		assert.Equal(t, Int(42), v)

		v, err = FromAny(2.5)
		require.NoError(t, err)
		assert.Equal(t, Float(2.5), v)

		v, err = FromAny("hello")
		require.NoError(t, err)
		assert.Equal(t, String("hello"), v)

		v, err = FromAny(true)
		require.NoError(t, err)
		assert.Equal(t, Bool(true), v)
	})

	t.Run("Nested", func(t *testing.T) {
		v, err := FromAny(map[string]any{
			"tags":  []any{"a", "b"},
			"score": 1.5,
		})
		require.NoError(t, err)
		require.Equal(t, KindObject, v.Kind)
		assert.Equal(t, Array(String("a"), String("b")), v.O["tags"])
		assert.Equal(t, Float(1.5), v.O["score"])
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := FromAny(make(chan int))
		require.Error(t, err)
	})
}

func TestValueJSONRoundTrip(t *testing.T) {
	vals := []Value{
		Null(),
		Int(7),
		Int(-9007199254740993), // beyond float64 integer precision
		Float(3.25),
		Float(5), // whole value must stay a float
		Float(1e21),
		Float(-0.0),
		String("text"),
		Bool(false),
		Array(Int(1), String("two"), Null()),
		Object(map[string]Value{
			"inner": Object(map[string]Value{"deep": Int(1)}),
		}),
	}

	for _, orig := range vals {
		data, err := json.Marshal(orig)
		require.NoError(t, err)

		var got Value
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, orig, got, "round trip of %s", data)
	}
}

func TestIntFloatDistinction(t *testing.T) {
	// 5 and 5.0 must stay distinct through a round trip.
	data, err := json.Marshal(Int(5))
	require.NoError(t, err)

	var got Value
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, KindInt, got.Kind)

	data, err = json.Marshal(Float(5.0))
	require.NoError(t, err)
	assert.Equal(t, "5.0", string(data))
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, KindFloat, got.Kind)
}

func TestMarshalFloatRejectsNonFinite(t *testing.T) {
	_, err := json.Marshal(Float(math.NaN()))
	require.Error(t, err)

	_, err = json.Marshal(Float(math.Inf(1)))
	require.Error(t, err)
}

func TestAny(t *testing.T) {
	v := Object(map[string]Value{
		"n":    Int(1),
		"list": Array(Bool(true)),
	})
	assert.Equal(t, map[string]any{
		"n":    int64(1),
		"list": []any{true},
	}, v.Any())
}
