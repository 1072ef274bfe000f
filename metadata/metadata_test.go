package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataEncodeDecode(t *testing.T) {
	orig := Metadata{
		"category":  String("health"),
		"timestamp": String("2024-10-27T11:00:00Z"),
		"attempt":   Int(3),
		"score":     Float(0.75),
		"flags":     Array(Bool(true), Bool(false)),
		"extra":     Object(map[string]Value{"source": String("cli")}),
	}

	data, err := Encode(orig)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestMetadataEncodeNil(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	got, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFromMapToMap(t *testing.T) {
	in := map[string]any{
		"category": "coding",
		"priority": 2,
	}

	md, err := FromMap(in)
	require.NoError(t, err)
	assert.Equal(t, String("coding"), md["category"])
	assert.Equal(t, Int(2), md["priority"])

	out := md.ToMap()
	assert.Equal(t, "coding", out["category"])
	assert.Equal(t, int64(2), out["priority"])
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	require.Error(t, err)
}
