// Package retriever post-processes nearest-neighbour hits.
package retriever

import (
	"math"

	"ragpipe/internal/domain"
	"ragpipe/internal/port"
)

var _ port.Reranker = (*MMRReranker)(nil)

// MMRReranker implements Maximal Marginal Relevance for result diversification.
type MMRReranker struct {
	lambda float64
	dedup  float64
}

// NewMMRReranker creates a new MMR reranker. lambda weighs relevance against
// novelty; candidates whose cosine similarity to an already selected hit
// exceeds dedup are dropped. A dedup of 0 or less disables dropping.
func NewMMRReranker(lambda, dedup float64) *MMRReranker {
	if dedup <= 0 {
		dedup = math.Inf(1)
	}
	return &MMRReranker{
		lambda: lambda,
		dedup:  dedup,
	}
}

// Rerank picks up to k hits greedily by
// MMR(c) = λ * sim(query, c) - (1-λ) * max sim(c, selected).
// Similarities are cosine, whatever metric the index uses.
func (r *MMRReranker) Rerank(query []float32, hits []domain.SearchHit, k int) []domain.SearchHit {
	if len(hits) == 0 || k <= 0 {
		return nil
	}
	if k > len(hits) {
		k = len(hits)
	}

	qm := norm(query)
	relevance := make([]float64, len(hits))
	for i, h := range hits {
		relevance[i] = cosine(query, h.Record.Vector, qm, norm(h.Record.Vector))
	}

	selected := make([]int, 0, k)
	used := make([]bool, len(hits))
	// maxSim[i] is the highest similarity of hit i to any selected hit
	maxSim := make([]float64, len(hits))

	for len(selected) < k {
		bestIdx := -1
		bestMMR := math.Inf(-1)

		for i := range hits {
			if used[i] || maxSim[i] > r.dedup {
				continue
			}
			mmr := r.lambda*relevance[i] - (1-r.lambda)*maxSim[i]
			if mmr > bestMMR {
				bestMMR = mmr
				bestIdx = i
			}
		}

		if bestIdx == -1 {
			// everything left is a near duplicate
			break
		}

		used[bestIdx] = true
		selected = append(selected, bestIdx)

		pick := hits[bestIdx].Record.Vector
		pm := norm(pick)
		for i := range hits {
			if used[i] {
				continue
			}
			if sim := cosine(hits[i].Record.Vector, pick, norm(hits[i].Record.Vector), pm); sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}

	out := make([]domain.SearchHit, len(selected))
	for n, i := range selected {
		out[n] = hits[i]
	}
	return out
}

func cosine(a, b []float32, am, bm float64) float64 {
	if am == 0 || bm == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (am * bm)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
