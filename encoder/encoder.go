// Package encoder defines the text-to-vector collaborator used by conceptdb.
//
// Encoding is external to the engine: an Encoder maps a string to a
// fixed-length float32 vector and is expected to be deterministic for a
// fixed model/version. The engine discovers the embedding dimensionality
// from the encoder at startup.
//
// Encoders are long-lived, injectable dependencies; tests substitute a
// deterministic stub (see the testutil package).
package encoder

import "context"

// Encoder generates vector embeddings for text.
type Encoder interface {
	// Encode generates the embedding vector for a single text.
	Encode(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the fixed length of vectors produced by Encode.
	Dimension() int
}
