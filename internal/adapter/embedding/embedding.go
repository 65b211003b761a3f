// Package embedding provides port.Embedder adapters.
package embedding

import (
	"fmt"

	"ragpipe/internal/domain"
)

// checkVectors verifies one non-empty vector per input, all the same size,
// and returns that size.
func checkVectors(want int, vectors [][]float32) (int, error) {
	if len(vectors) != want {
		return 0, fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrEmbeddingFailed, want, len(vectors))
	}
	if want == 0 {
		return 0, nil
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 {
			return 0, fmt.Errorf("%w: empty vector at position %d", domain.ErrEmbeddingFailed, i)
		}
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has dimension %d, expected %d", domain.ErrEmbeddingFailed, i, len(v), dim)
		}
	}
	return dim, nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
