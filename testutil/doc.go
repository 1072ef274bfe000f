// Package testutil provides shared test helpers for conceptdb: a seeded,
// thread-safe random number generator and a deterministic stub encoder
// that stands in for a real embedding model.
package testutil
