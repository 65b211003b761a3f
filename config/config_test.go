package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ragpipe/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1000, cfg.Chunk.Size)
	assert.Equal(t, 200, cfg.Chunk.Overlap)
	assert.Equal(t, Separators{"\n\n", "\n", " ", ""}, cfg.Chunk.Separators)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "llama3", cfg.Embedding.Model)
	assert.Equal(t, 3, cfg.Retrieve.TopK)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ragpipe.yaml")

	content := `
chunk:
  size: 300
  overlap: 30
fetch:
  timeout: 3s
  urls:
    - https://example.edu/undergrad
embedding:
  provider: mock
  dimension: 64
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Chunk.Size)
	assert.Equal(t, 30, cfg.Chunk.Overlap)
	assert.Equal(t, 3*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, []string{"https://example.edu/undergrad"}, cfg.Fetch.URLs)
	assert.Equal(t, "mock", cfg.Embedding.Provider)
	assert.Equal(t, 64, cfg.Embedding.Dimension)
	// untouched sections keep their defaults
	assert.Equal(t, "l2", cfg.Index.Metric)
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "ragpipe.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("chunk: [unclosed"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".ragpipe"), 0755))

	content := `
retrieve:
  top_k: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".ragpipe", "config.yaml"), []byte(content), 0644))

	cfg, err := LoadFromDir(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Retrieve.TopK)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragpipe.yaml")
	cfg := DefaultConfig()
	cfg.Index.Metric = "cosine"
	cfg.Pipeline.Workers = 4

	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `- "\n\n"`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Chunk, loaded.Chunk)
	assert.Equal(t, Separators{"\n\n", "\n", " ", ""}, loaded.Chunk.Separators)
	assert.Equal(t, cfg.Fetch.Timeout, loaded.Fetch.Timeout)
	assert.Equal(t, cfg.Embedding, loaded.Embedding)
	assert.Equal(t, "cosine", loaded.Index.Metric)
	assert.Equal(t, 4, loaded.Pipeline.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero size", func(c *Config) { c.Chunk.Size = 0 }},
		{"overlap equals size", func(c *Config) { c.Chunk.Overlap = c.Chunk.Size }},
		{"negative overlap", func(c *Config) { c.Chunk.Overlap = -1 }},
		{"no separators", func(c *Config) { c.Chunk.Separators = nil }},
		{"unknown length", func(c *Config) { c.Chunk.Length = "words" }},
		{"unknown metric", func(c *Config) { c.Index.Metric = "manhattan" }},
		{"no workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"no batch", func(c *Config) { c.Embedding.BatchSize = 0 }},
		{"lambda above one", func(c *Config) { c.Retrieve.MMRLambda = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
		})
	}
}

func TestIndexDir(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("/srv/bot", "index"), cfg.IndexDir("/srv/bot"))

	cfg.Index.Dir = "/var/lib/ragpipe"
	assert.Equal(t, "/var/lib/ragpipe", cfg.IndexDir("/srv/bot"))
}
