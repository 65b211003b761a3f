package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"ragpipe/internal/domain"
	"ragpipe/internal/port"
)

var _ port.Embedder = (*OllamaEmbedder)(nil)

const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3"
	DefaultOllamaTimeout = 120 * time.Second
)

// OllamaEmbedder calls a local Ollama server's batch embed endpoint.
type OllamaEmbedder struct {
	client    *http.Client
	baseURL   string
	model     string
	dimension atomic.Int64
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

// NewOllamaEmbedder builds an embedder for model served at baseURL. The
// dimension may be zero, in which case it is learned from the first response.
func NewOllamaEmbedder(model, baseURL string, dimension int, timeout time.Duration) *OllamaEmbedder {
	if model == "" {
		model = DefaultOllamaModel
	}
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultOllamaTimeout
	}

	e := &OllamaEmbedder{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
	e.dimension.Store(int64(dimension))
	return e
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", domain.ErrEmbeddingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrEmbeddingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama at %s: %w", domain.ErrModelUnavailable, e.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.statusError(resp)
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrEmbeddingFailed, err)
	}

	vectors := make([][]float32, len(embedResp.Embeddings))
	for i, v := range embedResp.Embeddings {
		vectors[i] = toFloat32(v)
	}

	dim, err := checkVectors(len(texts), vectors)
	if err != nil {
		return nil, err
	}
	e.dimension.CompareAndSwap(0, int64(dim))
	return vectors, nil
}

func (e *OllamaEmbedder) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	msg := strings.TrimSpace(string(body))
	var errResp ollamaErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: ollama model %s: %s", domain.ErrModelUnavailable, e.model, msg)
	}
	return fmt.Errorf("%w: ollama error (status %d): %s", domain.ErrEmbeddingFailed, resp.StatusCode, msg)
}

// Ping checks that the server is reachable without running inference.
func (e *OllamaEmbedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: create ping request: %w", domain.ErrModelUnavailable, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ping %s: %w", domain.ErrModelUnavailable, e.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ping %s: status %d", domain.ErrModelUnavailable, e.baseURL, resp.StatusCode)
	}
	return nil
}

func (e *OllamaEmbedder) Dimension() int {
	return int(e.dimension.Load())
}

func (e *OllamaEmbedder) ModelName() string {
	return e.model
}
