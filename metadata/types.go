package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindNull represents a null value.
	KindNull
	// KindInt represents an integer value.
	KindInt
	// KindFloat represents a float value.
	KindFloat
	// KindString represents a string value.
	KindString
	// KindBool represents a boolean value.
	KindBool
	// KindArray represents an array value.
	KindArray
	// KindObject represents a nested object value.
	KindObject
)

// Value is a small typed value used for record metadata.
//
// The representation keeps JSON round-trips lossless: an integer stays an
// integer and a float stays a float, which map[string]any cannot guarantee.
//
// NOTE: This is also used for persistence; keep it stable.
type Value struct {
	Kind Kind
	I64  int64
	F64  float64
	S    string
	B    bool
	A    []Value
	O    map[string]Value
}

// Null returns a null Value.
func Null() Value { return Value{Kind: KindNull} }

// Int returns an integer Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, S: v} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// Array returns an array Value.
func Array(vals ...Value) Value { return Value{Kind: KindArray, A: vals} }

// Object returns a nested object Value.
func Object(m map[string]Value) Value { return Value{Kind: KindObject, O: m} }

// FromAny converts a JSON-compatible Go value into a Value.
//
// Supported inputs: nil, bool, string, int, int64, float32, float64,
// json.Number, []any, map[string]any, and Value itself.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case json.Number:
		return fromNumber(x)
	case []any:
		vals := make([]Value, len(x))
		for i := range x {
			val, err := FromAny(x[i])
			if err != nil {
				return Value{}, err
			}
			vals[i] = val
		}
		return Array(vals...), nil
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, raw := range x {
			val, err := FromAny(raw)
			if err != nil {
				return Value{}, err
			}
			m[k] = val
		}
		return Object(m), nil
	default:
		return Value{}, fmt.Errorf("metadata: unsupported value type %T", v)
	}
}

// fromNumber keeps integers integral. JSON has a single number type, so the
// textual form decides: no fraction or exponent means integer.
func fromNumber(n json.Number) (Value, error) {
	if !strings.ContainsAny(n.String(), ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, fmt.Errorf("metadata: invalid number %q: %w", n.String(), err)
	}
	return Float(f), nil
}

// Any returns the native Go representation of the Value.
func (v Value) Any() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindInt:
		return v.I64
	case KindFloat:
		return v.F64
	case KindString:
		return v.S
	case KindBool:
		return v.B
	case KindArray:
		out := make([]any, len(v.A))
		for i := range v.A {
			out[i] = v.A[i].Any()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.O))
		for k := range v.O {
			out[k] = v.O[k].Any()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler. Values serialize to plain JSON,
// not a tagged envelope, so persisted metadata stays human-readable.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindInt:
		return json.Marshal(v.I64)
	case KindFloat:
		return marshalFloat(v.F64)
	case KindString:
		return json.Marshal(v.S)
	case KindBool:
		return json.Marshal(v.B)
	case KindArray:
		if v.A == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.A)
	case KindObject:
		if v.O == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.O)
	default:
		return nil, fmt.Errorf("metadata: cannot marshal invalid value")
	}
}

// marshalFloat emits a float so that its textual form always re-reads as a
// float: whole values keep a trailing ".0". Without this, Float(5) would
// serialize to "5" and decode as Int(5).
func marshalFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("metadata: unsupported float value %v", f)
	}
	b := strconv.AppendFloat(nil, f, 'g', -1, 64)
	if !bytes.ContainsAny(b, ".eE") {
		b = append(b, '.', '0')
	}
	return b, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	val, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}
