package vectorindex

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ragpipe/internal/domain"
)

func record(docID string, ordinal int, vec ...float32) domain.EmbeddedChunk {
	return domain.EmbeddedChunk{
		Chunk: domain.Chunk{
			ID:           fmt.Sprintf("%s#%d", docID, ordinal),
			DocumentID:   docID,
			Ordinal:      ordinal,
			SiblingCount: 1,
			Text:         fmt.Sprintf("text %s %d", docID, ordinal),
		},
		Vector: vec,
	}
}

func newIndex(t *testing.T, metric string) *Index {
	t.Helper()
	x, err := New(metric)
	require.NoError(t, err)
	return x
}

func TestNewUnknownMetric(t *testing.T) {
	_, err := New("manhattan")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	x := newIndex(t, "")
	assert.Equal(t, L2, x.Metric())
	assert.NotEmpty(t, x.ID())
}

func TestInsertAndQuery(t *testing.T) {
	x := newIndex(t, "l2")
	require.NoError(t, x.Insert([]domain.EmbeddedChunk{
		record("a", 0, 0, 0),
		record("a", 1, 1, 0),
		record("b", 0, 5, 5),
	}))

	assert.Equal(t, 3, x.Len())
	assert.Equal(t, 2, x.Dimension())

	hits, err := x.Query([]float32{0.9, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a#1", hits[0].Record.Chunk.ID)
	assert.InDelta(t, 0.01, hits[0].Distance, 1e-6)
	assert.Equal(t, "a#0", hits[1].Record.Chunk.ID)
	assert.InDelta(t, 0.81, hits[1].Distance, 1e-6)
}

func TestQueryKBounds(t *testing.T) {
	x := newIndex(t, "l2")

	hits, err := x.Query([]float32{1, 2}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, x.Insert([]domain.EmbeddedChunk{record("a", 0, 1, 1), record("a", 1, 2, 2)}))

	hits, err = x.Query([]float32{1, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	_, err = x.Query([]float32{1, 1}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = x.Query([]float32{1, 1}, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestQueryTiesKeepInsertionOrder(t *testing.T) {
	x := newIndex(t, "l2")
	require.NoError(t, x.Insert([]domain.EmbeddedChunk{
		record("d", 0, 1, 0),
		record("d", 1, 0, 1),
		record("d", 2, -1, 0),
		record("d", 3, 0, -1),
	}))

	hits, err := x.Query([]float32{0, 0}, 4)
	require.NoError(t, err)

	var ids []string
	for _, h := range hits {
		ids = append(ids, h.Record.Chunk.ID)
		assert.InDelta(t, 1.0, h.Distance, 1e-9)
	}
	assert.Equal(t, []string{"d#0", "d#1", "d#2", "d#3"}, ids)
}

func TestInsertDimensionMismatchIsAtomic(t *testing.T) {
	x := newIndex(t, "l2")
	require.NoError(t, x.Insert([]domain.EmbeddedChunk{record("a", 0, 1, 2, 3)}))

	err := x.Insert([]domain.EmbeddedChunk{
		record("b", 0, 1, 2, 3),
		record("b", 1, 1, 2),
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 1, x.Len())

	_, err = x.Query([]float32{1, 2}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestInsertFirstBatchSetsDimension(t *testing.T) {
	x := newIndex(t, "l2")

	err := x.Insert([]domain.EmbeddedChunk{record("a", 0, 1, 2), record("a", 1, 1, 2, 3)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 0, x.Len())
	assert.Equal(t, 0, x.Dimension())

	err = x.Insert([]domain.EmbeddedChunk{record("a", 0)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	require.NoError(t, x.Insert(nil))
	assert.Equal(t, 0, x.Len())
}

func TestInsertCopiesVectors(t *testing.T) {
	x := newIndex(t, "l2")
	vec := []float32{1, 1}
	require.NoError(t, x.Insert([]domain.EmbeddedChunk{record("a", 0, vec...)}))
	vec[0] = 100

	hits, err := x.Query([]float32{1, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, hits[0].Record.Vector)
	assert.Zero(t, hits[0].Distance)
}

func TestCosineMetric(t *testing.T) {
	x := newIndex(t, "cosine")
	require.NoError(t, x.Insert([]domain.EmbeddedChunk{
		record("a", 0, 10, 0),
		record("a", 1, 0, 1),
		record("a", 2, 0, 0),
		record("a", 3, -3, 0),
	}))

	hits, err := x.Query([]float32{1, 0}, 4)
	require.NoError(t, err)

	assert.Equal(t, "a#0", hits[0].Record.Chunk.ID)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-9)
	// orthogonal and zero vectors tie at 1, insertion order decides
	assert.Equal(t, "a#1", hits[1].Record.Chunk.ID)
	assert.Equal(t, "a#2", hits[2].Record.Chunk.ID)
	assert.InDelta(t, 1.0, hits[2].Distance, 1e-9)
	assert.Equal(t, "a#3", hits[3].Record.Chunk.ID)
	assert.InDelta(t, 2.0, hits[3].Distance, 1e-9)
}

func TestStats(t *testing.T) {
	x := newIndex(t, "cosine")
	x.SetModel("llama3")
	require.NoError(t, x.Insert([]domain.EmbeddedChunk{record("a", 0, 1), record("a", 1, 2), record("b", 0, 3)}))

	stats := x.Stats()
	assert.Equal(t, x.ID(), stats.ID)
	assert.Equal(t, "cosine", stats.Metric)
	assert.Equal(t, 1, stats.Dimension)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, "llama3", stats.Model)
}

func TestConcurrentInsertAndQuery(t *testing.T) {
	x := newIndex(t, "l2")
	require.NoError(t, x.Insert([]domain.EmbeddedChunk{record("seed", 0, 0, 0)}))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, x.Insert([]domain.EmbeddedChunk{record(fmt.Sprintf("w%d", w), i, float32(w), float32(i))}))
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				hits, err := x.Query([]float32{0, 0}, 3)
				assert.NoError(t, err)
				assert.NotEmpty(t, hits)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 201, x.Len())
}

func populated(t *testing.T, metric string, n, dim int) *Index {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	x := newIndex(t, metric)
	x.SetModel("mock")

	batch := make([]domain.EmbeddedChunk, n)
	for i := range batch {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = rng.Float32()*2 - 1
		}
		batch[i] = record(fmt.Sprintf("doc-%d", i%5), i, vec...)
	}
	require.NoError(t, x.Insert(batch))
	return x
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, metric := range []string{"l2", "cosine"} {
		t.Run(metric, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "index")
			x := populated(t, metric, 40, 8)

			require.NoError(t, x.Save(dir))

			loaded, err := Load(dir)
			require.NoError(t, err)

			assert.Equal(t, x.Stats(), loaded.Stats())
			assert.Equal(t, x.Records(), loaded.Records())

			rng := rand.New(rand.NewSource(99))
			for q := 0; q < 10; q++ {
				query := make([]float32, 8)
				for j := range query {
					query[j] = rng.Float32()
				}
				want, err := x.Query(query, 5)
				require.NoError(t, err)
				got, err := loaded.Query(query, 5)
				require.NoError(t, err)

				require.Len(t, got, len(want))
				for i := range want {
					assert.Equal(t, want[i].Record.Chunk.ID, got[i].Record.Chunk.ID)
					assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-9)
				}
			}
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	first := populated(t, "l2", 3, 2)
	require.NoError(t, first.Save(dir))

	second := populated(t, "l2", 6, 2)
	require.NoError(t, second.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, second.ID(), loaded.ID())
	assert.Equal(t, 6, loaded.Len())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temporary files must not be left behind")
}

func TestSaveLoadEmpty(t *testing.T) {
	dir := t.TempDir()
	x := newIndex(t, "l2")
	require.NoError(t, x.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
	assert.Equal(t, x.ID(), loaded.ID())
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nothing-here"))
	assert.ErrorIs(t, err, domain.ErrIOFailure)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadMissingArtifact(t *testing.T) {
	for _, name := range []string{VectorFile, RecordFile} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, populated(t, "l2", 4, 3).Save(dir))
			require.NoError(t, os.Remove(filepath.Join(dir, name)))

			_, err := Load(dir)
			assert.ErrorIs(t, err, domain.ErrCorruptIndex)
		})
	}
}

func TestLoadTruncatedVectors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, populated(t, "l2", 4, 3).Save(dir))

	path := filepath.Join(dir, VectorFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	for _, size := range []int{len(data) - 1, headerSize + 4, 10, 0} {
		require.NoError(t, os.WriteFile(path, data[:size], 0644))
		_, err := Load(dir)
		assert.ErrorIs(t, err, domain.ErrCorruptIndex, "size %d", size)
	}
}

func TestLoadOversizedHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, populated(t, "l2", 4, 3).Save(dir))

	path := filepath.Join(dir, VectorFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	tests := []struct {
		name   string
		dim, n uint32
	}{
		{"product wraps to zero", 1 << 31, 1 << 31},
		{"huge count", 4, math.MaxUint32},
		{"huge dimension", math.MaxUint32, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crafted := append([]byte(nil), data[:headerSize]...)
			binary.LittleEndian.PutUint32(crafted[24:28], tt.dim)
			binary.LittleEndian.PutUint32(crafted[28:32], tt.n)
			require.NoError(t, os.WriteFile(path, crafted, 0644))

			_, err := Load(dir)
			assert.ErrorIs(t, err, domain.ErrCorruptIndex)
		})
	}
}

func TestLoadBadMagic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, populated(t, "l2", 2, 2).Save(dir))

	path := filepath.Join(dir, VectorFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(data, "NOPE")
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = Load(dir)
	assert.ErrorIs(t, err, domain.ErrCorruptIndex)
}

func TestLoadMismatchedPair(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	require.NoError(t, populated(t, "l2", 4, 3).Save(a))
	require.NoError(t, populated(t, "l2", 4, 3).Save(b))

	// vectors from one index, records from another
	data, err := os.ReadFile(filepath.Join(b, VectorFile))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(a, VectorFile), data, 0644))

	_, err = Load(a)
	assert.ErrorIs(t, err, domain.ErrCorruptIndex)
}

func TestMarshalBinaryHeader(t *testing.T) {
	x := populated(t, "cosine", 3, 4)

	data, err := x.MarshalBinary()
	require.NoError(t, err)

	assert.Equal(t, "RAGV", string(data[:4]))
	assert.Len(t, data, headerSize+3*4*4)

	b, err := decodeBlob(data)
	require.NoError(t, err)
	assert.Equal(t, Cosine, b.metric)
	assert.Equal(t, x.ID(), b.id.String())
	assert.Equal(t, 4, b.dim)
	assert.Len(t, b.vectors, 3)
}
