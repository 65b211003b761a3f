package port

import (
	"context"

	"ragpipe/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns one vector per input text, in input order, all of the same
	// dimension. A failure applies to the whole batch.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension, or 0 when it is
	// only known after the first call.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex stores embedded chunks and answers k-nearest-neighbour queries.
type VectorIndex interface {
	// Insert adds the batch atomically: all records become queryable or none do.
	Insert(records []domain.EmbeddedChunk) error

	// Query returns up to k hits ordered by ascending distance.
	Query(vector []float32, k int) ([]domain.SearchHit, error)

	// Len returns the number of records in the index.
	Len() int
}
