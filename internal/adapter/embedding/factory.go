package embedding

import (
	"fmt"

	"ragpipe/config"
	"ragpipe/internal/domain"
	"ragpipe/internal/port"
)

// FromConfig creates the embedder named by c.Provider: ollama, openai or mock.
func FromConfig(c config.EmbeddingConfig) (port.Embedder, error) {
	switch c.Provider {
	case "ollama":
		return NewOllamaEmbedder(c.Model, c.BaseURL, c.Dimension, c.Timeout), nil
	case "openai":
		opts := []OpenAIOption{
			WithDimension(c.Dimension),
			WithTimeout(c.Timeout),
			WithMaxRetries(c.MaxRetries),
		}
		if c.BaseURL != "" {
			opts = append(opts, WithBaseURL(c.BaseURL))
		}
		return NewOpenAIEmbedder(c.APIKeyEnv, c.Model, opts...)
	case "mock":
		return NewMockEmbedder(c.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrInvalidConfig, c.Provider)
	}
}
