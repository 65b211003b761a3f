package domain

import (
	"errors"
	"fmt"
)

// Pipeline and index errors. Adapters wrap these so callers can match
// with errors.Is.
var (
	// ErrFetchFailed covers timeouts, connection errors and non-2xx responses.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrExtractionFailed indicates HTML or PDF text could not be extracted.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrFileNotFound indicates a local source file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrModelUnavailable indicates the embedding service or model cannot be reached.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrEmbeddingFailed indicates the embedding call failed for the whole batch.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrIOFailure indicates the index could not be read or written.
	ErrIOFailure = errors.New("index I/O failure")

	// ErrCorruptIndex indicates persisted index artifacts are missing or malformed.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrInvalidConfig indicates invalid chunker, index or pipeline settings.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidArgument indicates a bad argument to a query or build call.
	ErrInvalidArgument = errors.New("invalid argument")
)

// StageError records which pipeline stage failed for which document.
type StageError struct {
	DocumentID string
	Stage      Stage
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.DocumentID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
