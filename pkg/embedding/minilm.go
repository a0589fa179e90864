package embedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// MiniLM calls an OpenAI-embeddings-compatible HTTP endpoint serving a
// sentence-transformers/all-MiniLM-style model, whose native output is a
// 384-dimension vector — the dimension this module's memory store assumes.
// Unlike OpenAI's own text-embedding-3-* models (which only accept a fixed
// set of output dimensions), a self-hosted MiniLM server is not assumed to
// enforce that restriction.
type MiniLM struct {
	client     openai.Client
	model      string
	maxBatch   int
	httpClient *http.Client
}

// MiniLMOption configures a MiniLM backend.
type MiniLMOption func(*MiniLM)

// WithMiniLMModel overrides the model name sent to the embeddings
// endpoint. Defaults to "all-MiniLM-L6-v2".
func WithMiniLMModel(model string) MiniLMOption {
	return func(m *MiniLM) {
		if model != "" {
			m.model = model
		}
	}
}

// WithMiniLMMaxBatchSize caps texts per EmbedBatch call.
func WithMiniLMMaxBatchSize(size int) MiniLMOption {
	return func(m *MiniLM) {
		if size > 0 {
			m.maxBatch = size
		}
	}
}

// WithMiniLMHTTPClient sets a custom HTTP client, preserving the base URL
// and API key NewMiniLM already configured.
func WithMiniLMHTTPClient(client *http.Client) MiniLMOption {
	return func(m *MiniLM) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// NewMiniLM constructs a MiniLM backend pointed at baseURL, authenticated
// with apiKey (may be empty for an unauthenticated self-hosted server).
func NewMiniLM(baseURL, apiKey string, opts ...MiniLMOption) (*MiniLM, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("embedding: minilm base URL required")
	}

	clientOpts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}

	m := &MiniLM{
		model:    "all-MiniLM-L6-v2",
		maxBatch: 100,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(m.httpClient))
	}
	m.client = openai.NewClient(clientOpts...)
	return m, nil
}

func (m *MiniLM) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(m.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	}

	resp, err := m.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmbeddingFailed
	}

	return toFloat32(resp.Data[0].Embedding), nil
}

func (m *MiniLM) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	inputs := make([]string, len(texts))
	copy(inputs, texts)

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(m.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
	}

	resp, err := m.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = toFloat32(d.Embedding)
	}
	return out, nil
}

func (m *MiniLM) Dimensions() int { return Dimensions }

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
