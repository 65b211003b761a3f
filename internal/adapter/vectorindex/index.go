// Package vectorindex is a flat exact nearest-neighbour index over embedded
// chunks, persisted as a vector blob plus a record store.
package vectorindex

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"ragpipe/internal/domain"
	"ragpipe/internal/port"
)

var _ port.VectorIndex = (*Index)(nil)

// Index keeps records in insertion order and scans all of them per query.
// Inserts are serialized; queries run concurrently with each other.
type Index struct {
	mu        sync.RWMutex
	id        uuid.UUID
	metric    Metric
	dim       int
	records   []domain.EmbeddedChunk
	mags      []float64
	model     string
	createdAt time.Time
}

// New returns an empty index using metric ("l2" or "cosine").
func New(metric string) (*Index, error) {
	m, err := ParseMetric(metric)
	if err != nil {
		return nil, err
	}
	return &Index{
		id:        uuid.New(),
		metric:    m,
		createdAt: time.Now().UTC(),
	}, nil
}

// Insert appends the batch. Either every record is added or, on a dimension
// mismatch, none is.
func (x *Index) Insert(records []domain.EmbeddedChunk) error {
	if len(records) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	want := x.dim
	if want == 0 {
		want = len(records[0].Vector)
	}
	if want == 0 {
		return fmt.Errorf("%w: record %s has an empty vector", domain.ErrDimensionMismatch, records[0].Chunk.ID)
	}
	for i, r := range records {
		if len(r.Vector) != want {
			return fmt.Errorf("%w: record %d (%s) has dimension %d, index has %d",
				domain.ErrDimensionMismatch, i, r.Chunk.ID, len(r.Vector), want)
		}
	}

	for _, r := range records {
		vec := append([]float32(nil), r.Vector...)
		x.records = append(x.records, domain.EmbeddedChunk{Chunk: r.Chunk, Vector: vec})
		x.mags = append(x.mags, magnitude(vec))
	}
	x.dim = want
	return nil
}

// Query returns the min(k, Len()) closest records by ascending distance.
// Equal distances keep insertion order.
func (x *Index) Query(vector []float32, k int) ([]domain.SearchHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidArgument, k)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.records) == 0 {
		return []domain.SearchHit{}, nil
	}
	if len(vector) != x.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", domain.ErrDimensionMismatch, len(vector), x.dim)
	}

	type scored struct {
		idx  int
		dist float64
	}
	scores := make([]scored, len(x.records))
	qm := magnitude(vector)
	for i, r := range x.records {
		var d float64
		if x.metric == Cosine {
			d = cosineDistance(vector, r.Vector, qm, x.mags[i])
		} else {
			d = squaredL2(vector, r.Vector)
		}
		scores[i] = scored{idx: i, dist: d}
	}

	sort.SliceStable(scores, func(a, b int) bool { return scores[a].dist < scores[b].dist })

	if k > len(scores) {
		k = len(scores)
	}
	hits := make([]domain.SearchHit, k)
	for n := 0; n < k; n++ {
		r := x.records[scores[n].idx]
		hits[n] = domain.SearchHit{
			Record:   domain.EmbeddedChunk{Chunk: r.Chunk, Vector: append([]float32(nil), r.Vector...)},
			Distance: scores[n].dist,
		}
	}
	return hits, nil
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// Dimension is 0 until the first insert.
func (x *Index) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

func (x *Index) Metric() Metric {
	return x.metric
}

func (x *Index) ID() string {
	return x.id.String()
}

// SetModel records which embedding model produced the vectors.
func (x *Index) SetModel(model string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.model = model
}

func (x *Index) Model() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.model
}

// Records returns the records in insertion order. Callers must not modify
// the vectors.
func (x *Index) Records() []domain.EmbeddedChunk {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]domain.EmbeddedChunk(nil), x.records...)
}

func (x *Index) Stats() domain.Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.statsLocked()
}

func (x *Index) statsLocked() domain.Stats {
	return domain.Stats{
		ID:        x.id.String(),
		Metric:    string(x.metric),
		Dimension: x.dim,
		Records:   len(x.records),
		Documents: x.documentsLocked(),
		Model:     x.model,
	}
}

func (x *Index) documentsLocked() int {
	docs := make(map[string]struct{})
	for _, r := range x.records {
		docs[r.Chunk.DocumentID] = struct{}{}
	}
	return len(docs)
}
