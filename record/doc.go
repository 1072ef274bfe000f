// Package record provides the durable record store for conceptdb.
//
// Records (vector, metadata, raw text) are persisted in a SQLite table with
// monotonically assigned integer ids. The store is the single source of
// truth: the vector index is a derived, rebuildable cache over the vectors
// held here.
//
// The store assumes a single writing process; concurrent multi-process
// access to the same database file is unsupported.
package record
