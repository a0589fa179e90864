package embedding

import "fmt"

// Config drives New's backend selection, populated via core/config.Load.
type Config struct {
	SemanticSearchEnabled bool   `env:"SEMANTIC_SEARCH_ENABLED" envDefault:"false"`
	SemanticModel         string `env:"SEMANTIC_MODEL" envDefault:"disabled"`
	MiniLMBaseURL         string `env:"MINILM_BASE_URL"`
	MiniLMAPIKey          string `env:"MINILM_API_KEY"`
	OpenAIAPIKey          string `env:"OPENAI_API_KEY"`
}

// New selects and constructs an Embedder according to cfg.SemanticModel.
// SemanticSearchEnabled=false, or a model name of "" or "disabled", selects
// the disabled backend; an unrecognized model name returns
// ErrUnknownBackend.
func New(cfg Config) (Embedder, error) {
	if !cfg.SemanticSearchEnabled {
		return NewDisabled(), nil
	}

	switch cfg.SemanticModel {
	case "", "disabled":
		return NewDisabled(), nil
	case "mock":
		return NewMock(), nil
	case "minilm":
		return NewMiniLM(cfg.MiniLMBaseURL, cfg.MiniLMAPIKey)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.SemanticModel)
	}
}
