package usecase

import (
	"context"
	"fmt"
	"strings"

	"ragpipe/internal/domain"
	"ragpipe/internal/port"
)

// RetrieveUseCase handles query-time nearest-neighbour lookups.
type RetrieveUseCase struct {
	embedder   port.Embedder
	index      port.VectorIndex
	reranker   port.Reranker
	candidates int
}

// RetrieveOption configures a RetrieveUseCase.
type RetrieveOption func(*RetrieveUseCase)

// WithReranker fetches up to candidates hits and lets r pick the final k.
func WithReranker(r port.Reranker, candidates int) RetrieveOption {
	return func(u *RetrieveUseCase) {
		u.reranker = r
		u.candidates = candidates
	}
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(embedder port.Embedder, index port.VectorIndex, opts ...RetrieveOption) *RetrieveUseCase {
	u := &RetrieveUseCase{
		embedder: embedder,
		index:    index,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Retrieve embeds the query and returns the k closest chunks.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidArgument)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidArgument, k)
	}

	vectors, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: %d vectors for one query", domain.ErrEmbeddingFailed, len(vectors))
	}

	if u.reranker == nil {
		return u.index.Query(vectors[0], k)
	}

	fetch := k
	if u.candidates > k {
		fetch = u.candidates
	}
	hits, err := u.index.Query(vectors[0], fetch)
	if err != nil || len(hits) == 0 {
		return hits, err
	}
	return u.reranker.Rerank(vectors[0], hits, k), nil
}

// HitResult is a simplified result for CLI output.
type HitResult struct {
	Rank     int     `json:"rank"`
	Source   string  `json:"source"`
	ChunkID  string  `json:"chunk_id"`
	Ordinal  int     `json:"chunk"`
	Siblings int     `json:"total_chunks"`
	Distance float64 `json:"distance"`
	Text     string  `json:"text"`
}

// ToResults converts hits to CLI results, ranked from 1.
func ToResults(hits []domain.SearchHit) []HitResult {
	results := make([]HitResult, len(hits))
	for i, h := range hits {
		c := h.Record.Chunk
		results[i] = HitResult{
			Rank:     i + 1,
			Source:   c.DocumentID,
			ChunkID:  c.ID,
			Ordinal:  c.Ordinal,
			Siblings: c.SiblingCount,
			Distance: h.Distance,
			Text:     c.Text,
		}
	}
	return results
}
