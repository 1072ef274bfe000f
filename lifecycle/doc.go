// Package lifecycle keeps the vector index consistent with the record
// store.
//
// The policy is deliberately conservative: the index is never updated
// incrementally. On startup a persisted index is loaded if valid, and
// rebuilt from the full record set otherwise; after every write the index
// is fully rebuilt and re-persisted before the write is considered
// complete.
package lifecycle
