// Package metadata provides the typed metadata model for conceptdb records.
//
// Callers attach open-schema metadata to every interaction. Instead of an
// untyped blob, values are represented as a small tagged union (Value) that
// preserves the distinction between integers, floats, strings, booleans,
// nulls, arrays and nested objects across a JSON round-trip.
package metadata
