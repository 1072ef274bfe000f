// Package annoy provides an Annoy-style approximate nearest neighbor index
// for conceptdb.
//
// The index is a forest of random-projection trees built in bulk over the
// full (id, vector) population. Construction is deterministic for a fixed
// seed, tree count and metric; query results follow ANN semantics and are
// approximately, not exactly, optimal.
//
// The index is a derived, rebuildable cache: it is persisted to a single
// opaque binary file after every build and discarded and rebuilt whenever
// it cannot be loaded.
package annoy
