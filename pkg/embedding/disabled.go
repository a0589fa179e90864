package embedding

import "context"

// disabled is an Embedder that never produces vectors, used when
// SEMANTIC_MODEL=disabled. Embed returns nil, nil and EmbedBatch returns
// one nil vector per input text, so callers can treat the absence of an
// embedding as "skip semantic search" rather than an error.
type disabled struct{}

// NewDisabled returns an Embedder that produces no embeddings.
func NewDisabled() Embedder { return disabled{} }

func (disabled) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }

func (disabled) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func (disabled) Dimensions() int { return Dimensions }
