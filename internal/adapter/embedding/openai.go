package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"ragpipe/internal/domain"
	"ragpipe/internal/port"
)

var _ port.Embedder = (*OpenAIEmbedder)(nil)

const (
	DefaultOpenAIModel = "text-embedding-3-small"
	openAIMaxBatch     = 100
)

// OpenAIEmbedder talks to the OpenAI embeddings API or any service that
// speaks the same protocol.
type OpenAIEmbedder struct {
	client         openai.Client
	model          string
	dimension      atomic.Int64
	sendDimensions bool
}

type openAIOptions struct {
	baseURL    string
	dimension  int
	timeout    time.Duration
	maxRetries int
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*openAIOptions)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(o *openAIOptions) {
		o.baseURL = baseURL
	}
}

// WithDimension requests vectors of the given size from models that support it.
func WithDimension(dimension int) OpenAIOption {
	return func(o *openAIOptions) {
		o.dimension = dimension
	}
}

func WithTimeout(timeout time.Duration) OpenAIOption {
	return func(o *openAIOptions) {
		o.timeout = timeout
	}
}

func WithMaxRetries(n int) OpenAIOption {
	return func(o *openAIOptions) {
		o.maxRetries = n
	}
}

// NewOpenAIEmbedder reads the API key from the environment variable apiKeyEnv.
func NewOpenAIEmbedder(apiKeyEnv, model string, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key not found in environment variable: %s", domain.ErrInvalidConfig, apiKeyEnv)
	}
	return NewOpenAICompatibleEmbedder(apiKey, model, opts...), nil
}

func NewOpenAICompatibleEmbedder(apiKey, model string, opts ...OpenAIOption) *OpenAIEmbedder {
	o := openAIOptions{maxRetries: 2}
	for _, opt := range opts {
		opt(&o)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(o.baseURL))
	}
	if o.timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(o.timeout))
	}

	e := &OpenAIEmbedder{
		client:         openai.NewClient(clientOpts...),
		model:          model,
		sendDimensions: o.dimension > 0,
	}

	dimension := o.dimension
	if dimension == 0 {
		switch model {
		case "text-embedding-3-small", "text-embedding-ada-002":
			dimension = 1536
		case "text-embedding-3-large":
			dimension = 3072
		case "jina-embeddings-v3":
			dimension = 1024
		}
	}
	e.dimension.Store(int64(dimension))
	return e
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += openAIMaxBatch {
		end := i + openAIMaxBatch
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}

	dim, err := checkVectors(len(texts), all)
	if err != nil {
		return nil, err
	}
	e.dimension.CompareAndSwap(0, int64(dim))
	return all, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}
	if e.sendDimensions {
		params.Dimensions = openai.Int(e.dimension.Load())
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(e.model, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrEmbeddingFailed, len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || int(data.Index) >= len(vectors) || vectors[data.Index] != nil {
			return nil, fmt.Errorf("%w: unexpected vector index %d", domain.ErrEmbeddingFailed, data.Index)
		}
		vectors[data.Index] = toFloat32(data.Embedding)
	}
	return vectors, nil
}

func classifyOpenAIError(model string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", domain.ErrModelUnavailable, model, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: model %s not found: %w", domain.ErrModelUnavailable, model, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, err)
	}

	// no HTTP response at all: connection refused, DNS, TLS
	return fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
}

func (e *OpenAIEmbedder) Dimension() int {
	return int(e.dimension.Load())
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
