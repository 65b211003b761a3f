package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ragpipe/internal/adapter/embedding"
	"ragpipe/internal/domain"
)

func TestCheckModelPingsOllama(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	e := embedding.NewOllamaEmbedder("nomic-embed-text", srv.URL, 0, time.Second)
	require.NoError(t, checkModel(context.Background(), e))
	assert.Equal(t, []string{"/api/tags"}, paths)
}

func TestCheckModelServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := embedding.NewOllamaEmbedder("nomic-embed-text", srv.URL, 0, time.Second)
	assert.ErrorIs(t, checkModel(context.Background(), e), domain.ErrModelUnavailable)
}

func TestCheckModelUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e := embedding.NewOllamaEmbedder("nomic-embed-text", url, 0, time.Second)
	assert.ErrorIs(t, checkModel(context.Background(), e), domain.ErrModelUnavailable)
}

func TestCheckModelWithoutServer(t *testing.T) {
	assert.NoError(t, checkModel(context.Background(), embedding.NewMockEmbedder(8)))
}

func TestCollectQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte("tuition deadline\n\n  housing office  \n"), 0644))

	queries, err := collectQueries("financial aid", path)
	require.NoError(t, err)
	assert.Equal(t, []string{"financial aid", "tuition deadline", "housing office"}, queries)
}

func TestShortPath(t *testing.T) {
	assert.Equal(t, "handbook.pdf", shortPath("/srv/docs/handbook.pdf"))
	assert.Equal(t, "docs/a.pdf", shortPath("docs/a.pdf"))
}
