package vectorindex

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"time"

	"ragpipe/internal/adapter/store"
	"ragpipe/internal/domain"
)

const (
	VectorFile = "index.vec"
	RecordFile = "records.db"
)

// Save writes the index to dir as two files, each staged under a temporary
// name and renamed into place.
func (x *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %w", domain.ErrIOFailure, dir, err)
	}

	// one snapshot so both files describe the same records
	x.mu.RLock()
	data := x.encodeLocked()
	stats := x.statsLocked()
	records := append([]domain.EmbeddedChunk(nil), x.records...)
	x.mu.RUnlock()

	meta := store.Meta{
		IndexID:   stats.ID,
		Metric:    stats.Metric,
		Dimension: stats.Dimension,
		Count:     stats.Records,
		Documents: stats.Documents,
		Model:     stats.Model,
		CreatedAt: x.createdAt,
		UpdatedAt: time.Now().UTC(),
	}

	vecTmp, err := writeTemp(dir, VectorFile, data)
	if err != nil {
		return err
	}
	defer os.Remove(vecTmp)

	dbTmp, err := writeRecords(dir, meta, records)
	if err != nil {
		return err
	}
	defer os.Remove(dbTmp)

	if err := os.Rename(dbTmp, filepath.Join(dir, RecordFile)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}
	if err := os.Rename(vecTmp, filepath.Join(dir, VectorFile)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}
	return nil
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: write %s: %w", domain.ErrIOFailure, f.Name(), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: sync %s: %w", domain.ErrIOFailure, f.Name(), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}
	return f.Name(), nil
}

func writeRecords(dir string, meta store.Meta, records []domain.EmbeddedChunk) (string, error) {
	path, err := writeTemp(dir, RecordFile, nil)
	if err != nil {
		return "", err
	}

	s, err := store.NewBoltStore(path)
	if err != nil {
		os.Remove(path)
		return "", err
	}

	chunks := make([]domain.Chunk, len(records))
	for i, r := range records {
		chunks[i] = r.Chunk
	}

	if err := s.AppendRecords(chunks); err != nil {
		s.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: write records: %w", domain.ErrIOFailure, err)
	}
	if err := s.PutMeta(meta); err != nil {
		s.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: write meta: %w", domain.ErrIOFailure, err)
	}
	if err := s.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}
	return path, nil
}

// Load reads an index saved by Save. A directory holding neither file is an
// I/O failure; one file without the other, or files that disagree, is
// corruption.
func Load(dir string) (*Index, error) {
	vecPath := filepath.Join(dir, VectorFile)
	dbPath := filepath.Join(dir, RecordFile)

	vecExists, err := exists(vecPath)
	if err != nil {
		return nil, err
	}
	dbExists, err := exists(dbPath)
	if err != nil {
		return nil, err
	}
	switch {
	case !vecExists && !dbExists:
		return nil, fmt.Errorf("%w: no index in %s: %w", domain.ErrIOFailure, dir, iofs.ErrNotExist)
	case !vecExists:
		return nil, fmt.Errorf("%w: %s is missing", domain.ErrCorruptIndex, vecPath)
	case !dbExists:
		return nil, fmt.Errorf("%w: %s is missing", domain.ErrCorruptIndex, dbPath)
	}

	data, err := os.ReadFile(vecPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}
	b, err := decodeBlob(data)
	if err != nil {
		return nil, err
	}

	s, err := store.OpenBoltStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	meta, err := s.GetMeta()
	if err != nil {
		return nil, err
	}
	chunks, err := s.Records()
	if err != nil {
		return nil, err
	}

	switch {
	case meta.IndexID != b.id.String():
		return nil, fmt.Errorf("%w: record store belongs to index %s, vectors to %s", domain.ErrCorruptIndex, meta.IndexID, b.id)
	case meta.Metric != string(b.metric):
		return nil, fmt.Errorf("%w: metric %q in records, %q in vectors", domain.ErrCorruptIndex, meta.Metric, b.metric)
	case meta.Dimension != b.dim:
		return nil, fmt.Errorf("%w: dimension %d in records, %d in vectors", domain.ErrCorruptIndex, meta.Dimension, b.dim)
	case meta.Count != len(b.vectors) || len(chunks) != len(b.vectors):
		return nil, fmt.Errorf("%w: %d vectors, %d records, meta count %d", domain.ErrCorruptIndex, len(b.vectors), len(chunks), meta.Count)
	}

	x := &Index{
		id:        b.id,
		metric:    b.metric,
		dim:       b.dim,
		records:   make([]domain.EmbeddedChunk, len(chunks)),
		mags:      make([]float64, len(chunks)),
		model:     meta.Model,
		createdAt: meta.CreatedAt,
	}
	for i, c := range chunks {
		x.records[i] = domain.EmbeddedChunk{Chunk: c, Vector: b.vectors[i]}
		x.mags[i] = magnitude(b.vectors[i])
	}
	return x, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, iofs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
}
