package port

import "ragpipe/internal/domain"

// Reranker reorders and trims nearest-neighbour hits for a query vector.
type Reranker interface {
	Rerank(query []float32, hits []domain.SearchHit, k int) []domain.SearchHit
}
