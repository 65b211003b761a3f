package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
	"ragpipe/internal/domain"
)

// Config holds all configuration for the pipeline.
type Config struct {
	Chunk     ChunkConfig     `yaml:"chunk"`
	Fetch     FetchConfig     `yaml:"fetch"`
	PDF       PDFConfig       `yaml:"pdf"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Logging   LoggingConfig   `yaml:"logging"`
	EnvFile   string          `yaml:"env_file"`
}

// ChunkConfig holds chunking configuration.
type ChunkConfig struct {
	Size       int        `yaml:"size"`
	Overlap    int        `yaml:"overlap"`
	Separators Separators `yaml:"separators"`
	Length     string     `yaml:"length"`   // "chars" or "tokens"
	Encoding   string     `yaml:"encoding"` // tiktoken encoding for "tokens"
	TrimSpace  bool       `yaml:"trim_space"`
}

// Separators are chunk separators in priority order. They are written as
// double-quoted scalars so that "\n\n" and "\n" survive a Save/Load cycle.
type Separators []string

func (s Separators) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode}
	for _, sep := range s {
		node.Content = append(node.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: sep,
			Style: yaml.DoubleQuotedStyle,
		})
	}
	return node, nil
}

// FetchConfig holds web fetching configuration.
type FetchConfig struct {
	URLs          []string      `yaml:"urls"`
	Timeout       time.Duration `yaml:"timeout"`
	Delay         time.Duration `yaml:"delay"` // minimum spacing between requests
	UserAgent     string        `yaml:"user_agent"`
	MinLineLength int           `yaml:"min_line_length"`
	StripTags     []string      `yaml:"strip_tags"`
}

// PDFConfig holds PDF discovery configuration.
type PDFConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // "ollama", "openai", "mock"
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"` // Environment variable for API key
	Dimension  int           `yaml:"dimension"`
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// IndexConfig holds index configuration.
type IndexConfig struct {
	Dir    string `yaml:"dir"`
	Metric string `yaml:"metric"` // "l2" or "cosine"
}

// PipelineConfig holds orchestration configuration.
type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// RetrieveConfig holds query configuration.
type RetrieveConfig struct {
	TopK           int     `yaml:"top_k"`
	MMR            bool    `yaml:"mmr"`
	MMRLambda      float64 `yaml:"mmr_lambda"`
	DedupThreshold float64 `yaml:"dedup_threshold"` // cosine similarity; 0 disables
	Candidates     int     `yaml:"candidates"`      // hits fetched before MMR
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunk: ChunkConfig{
			Size:       1000,
			Overlap:    200,
			Separators: Separators{"\n\n", "\n", " ", ""},
			Length:     "chars",
			Encoding:   "cl100k_base",
			TrimSpace:  true,
		},
		Fetch: FetchConfig{
			Timeout:       10 * time.Second,
			Delay:         time.Second,
			UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			MinLineLength: 3,
			StripTags:     []string{"script", "style", "nav", "header", "footer"},
		},
		PDF: PDFConfig{
			Includes: []string{"**/*.pdf", "**/*.PDF"},
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Model:      "llama3",
			APIKeyEnv:  "OPENAI_API_KEY",
			BatchSize:  32,
			Timeout:    120 * time.Second,
			MaxRetries: 2,
		},
		Index: IndexConfig{
			Dir:    "index",
			Metric: "l2",
		},
		Pipeline: PipelineConfig{
			Workers: 1,
		},
		Retrieve: RetrieveConfig{
			TopK:           3,
			MMRLambda:      0.7,
			DedupThreshold: 0.95,
			Candidates:     20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		EnvFile: ".env",
	}
}

// Validate checks settings that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	switch {
	case c.Chunk.Size <= 0:
		return fmt.Errorf("%w: chunk.size must be positive, got %d", domain.ErrInvalidConfig, c.Chunk.Size)
	case c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size:
		return fmt.Errorf("%w: chunk.overlap must be in [0, %d), got %d", domain.ErrInvalidConfig, c.Chunk.Size, c.Chunk.Overlap)
	case len(c.Chunk.Separators) == 0:
		return fmt.Errorf("%w: chunk.separators must not be empty", domain.ErrInvalidConfig)
	case c.Chunk.Length != "chars" && c.Chunk.Length != "tokens":
		return fmt.Errorf("%w: chunk.length must be chars or tokens, got %q", domain.ErrInvalidConfig, c.Chunk.Length)
	case c.Index.Metric != "l2" && c.Index.Metric != "cosine":
		return fmt.Errorf("%w: index.metric must be l2 or cosine, got %q", domain.ErrInvalidConfig, c.Index.Metric)
	case c.Pipeline.Workers < 1:
		return fmt.Errorf("%w: pipeline.workers must be at least 1, got %d", domain.ErrInvalidConfig, c.Pipeline.Workers)
	case c.Retrieve.MMRLambda < 0 || c.Retrieve.MMRLambda > 1:
		return fmt.Errorf("%w: retrieve.mmr_lambda must be in [0, 1], got %g", domain.ErrInvalidConfig, c.Retrieve.MMRLambda)
	case c.Embedding.BatchSize < 1:
		return fmt.Errorf("%w: embedding.batch_size must be at least 1, got %d", domain.ErrInvalidConfig, c.Embedding.BatchSize)
	}
	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ragpipe.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ragpipe.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ragpipe", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDir resolves the index directory relative to dir.
func (c *Config) IndexDir(dir string) string {
	if filepath.IsAbs(c.Index.Dir) {
		return c.Index.Dir
	}
	return filepath.Join(dir, c.Index.Dir)
}
