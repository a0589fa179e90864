// Package embedding adapts text into fixed-dimension vectors for semantic
// memory search. The model itself is treated as an opaque function of fixed
// output dimension; callers select a backend via SEMANTIC_MODEL.
package embedding

import "context"

// Dimensions is the fixed vector size every backend in this package
// reports. The memory store's embedding column is an unsized REAL[].
const Dimensions = 384

// Embedder converts text to a fixed-dimension vector embedding.
type Embedder interface {
	// Embed converts a single text to a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to vector embeddings, in the same
	// order as the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector size this backend produces.
	Dimensions() int
}
