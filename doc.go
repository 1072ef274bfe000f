// Package conceptdb provides a small persistent store for short text
// interactions, indexed by semantic similarity.
//
// Every interaction is encoded into a fixed-length embedding by an external
// encoder, durably recorded in a SQLite table together with its metadata
// and original text, and indexed in an Annoy-style approximate nearest
// neighbor forest. The two operations are AddInteraction (durably record)
// and Search (top-K most similar previously recorded interactions).
//
// # Quick Start
//
//	ctx := context.Background()
//
//	enc, err := encoder.NewOllama()
//	if err != nil {
//	    panic(err)
//	}
//
//	lib, err := conceptdb.Open(ctx, "concepts.db", enc)
//	if err != nil {
//	    panic(err)
//	}
//	defer lib.Close()
//
//	id, err := lib.AddInteraction(ctx, "How do I manage stress?", metadata.Metadata{
//	    "category": metadata.String("health"),
//	})
//
//	results, err := lib.Search(ctx, "anxiety relief", 10)
//
// # Consistency Model
//
// The index is fully rebuilt and re-persisted after every write, so a
// write that has returned is immediately searchable from the same thread
// of control. The cost of each write therefore scales with the total
// number of records; callers needing write throughput should batch inserts
// through the record store and trigger a single rebuild afterwards.
//
// The library is a single-process design: the database file and the index
// file are owned exclusively by one running instance.
package conceptdb
