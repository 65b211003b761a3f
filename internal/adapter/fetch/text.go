package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"ragpipe/internal/domain"
	"ragpipe/internal/port"
)

var _ port.DocumentLoader = (*TextLoader)(nil)
var _ port.DocumentLoader = (*AutoLoader)(nil)

// TextLoader reads UTF-8 text files as they are.
type TextLoader struct{}

func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

func (l *TextLoader) Load(_ context.Context, path string) (domain.Document, error) {
	if err := statFile(path); err != nil {
		return domain.Document{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, path, err)
	}
	if !utf8.Valid(data) {
		return domain.Document{}, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrExtractionFailed, path)
	}
	return domain.Document{ID: path, Text: string(data), Kind: domain.KindText}, nil
}

// AutoLoader dispatches on the source: http(s) URLs go to the web loader,
// .pdf files to the PDF loader and anything else to the text loader.
type AutoLoader struct {
	Web  port.DocumentLoader
	PDF  port.DocumentLoader
	Text port.DocumentLoader
}

func (l *AutoLoader) Load(ctx context.Context, source string) (domain.Document, error) {
	return l.pick(source).Load(ctx, source)
}

func (l *AutoLoader) pick(source string) port.DocumentLoader {
	lower := strings.ToLower(source)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return l.Web
	case filepath.Ext(lower) == ".pdf":
		return l.PDF
	default:
		return l.Text
	}
}
