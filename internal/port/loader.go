package port

import (
	"context"

	"ragpipe/internal/domain"
)

// DocumentLoader turns a source identifier (URL or path) into a document.
type DocumentLoader interface {
	Load(ctx context.Context, source string) (domain.Document, error)
}
