package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// mock is a deterministic Embedder for tests and local development
// (SEMANTIC_MODEL=mock). It derives a unit vector from the FNV hash of the
// input text, so identical text always yields identical embeddings without
// any external call.
type mock struct{}

// NewMock returns a deterministic, dependency-free Embedder.
func NewMock() Embedder { return mock{} }

func (mock) Embed(ctx context.Context, text string) ([]float32, error) {
	return deterministicVector(text), nil
}

func (mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = deterministicVector(t)
	}
	return out, nil
}

func (mock) Dimensions() int { return Dimensions }

// deterministicVector seeds a simple xorshift PRNG from the FNV-1a hash of
// text and fills a unit-length vector of length Dimensions.
func deterministicVector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()
	if state == 0 {
		state = 0x9E3779B97F4A7C15
	}

	vec := make([]float32, Dimensions)
	var sumSquares float64
	for i := range vec {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v := float64(state%2000)/1000 - 1 // roughly in [-1, 1)
		vec[i] = float32(v)
		sumSquares += v * v
	}

	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
