package metadata

import (
	"bytes"
	"encoding/json"
)

// Metadata is an open-schema mapping attached to a record.
// Keys are caller-defined; values are opaque to the engine.
type Metadata map[string]Value

// FromMap converts a map of JSON-compatible Go values into Metadata.
func FromMap(m map[string]any) (Metadata, error) {
	out := make(Metadata, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// ToMap returns the native Go representation of the Metadata.
func (m Metadata) ToMap() map[string]any {
	out := make(map[string]any, len(m))
	for k := range m {
		out[k] = m[k].Any()
	}
	return out
}

// Encode serializes the Metadata to its persisted JSON form.
func Encode(m Metadata) ([]byte, error) {
	if m == nil {
		m = Metadata{}
	}
	return json.Marshal(m)
}

// Decode parses the persisted JSON form back into Metadata.
func Decode(data []byte) (Metadata, error) {
	if len(data) == 0 {
		return Metadata{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromMap(raw)
}
