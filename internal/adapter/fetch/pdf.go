package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"ragpipe/internal/domain"
	"ragpipe/internal/port"
)

var _ port.DocumentLoader = (*PDFLoader)(nil)

// PDFLoader extracts the plain text of every page of a PDF file.
type PDFLoader struct{}

func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

func (l *PDFLoader) Load(ctx context.Context, path string) (domain.Document, error) {
	if err := statFile(path); err != nil {
		return domain.Document{}, err
	}

	text, err := extractPDF(ctx, path)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{ID: path, Text: text, Kind: domain.KindPDF}, nil
}

func extractPDF(ctx context.Context, path string) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", domain.ErrExtractionFailed, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, path, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: %s: page %d: %w", domain.ErrExtractionFailed, path, i, err)
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n"), nil
}

func statFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", domain.ErrExtractionFailed, path)
	}
	return nil
}
