package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ragpipe/internal/domain"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestConfigFrom(t *testing.T) {
	cfg, err := ConfigFrom("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, Config{Level: slog.LevelInfo, Format: "text"}, cfg)

	cfg, err = ConfigFrom("debug", "JSON")
	require.NoError(t, err)
	assert.Equal(t, Config{Level: slog.LevelDebug, Format: "json"}, cfg)

	cfg, err = ConfigFrom("", "json")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, cfg.Level)

	_, err = ConfigFrom("loud", "text")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestNewJSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json"}, &buf)

	log.Debug("hidden")
	log.Info("document indexed", "source", "a.pdf", "chunks", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "document indexed", entry["msg"])
	assert.Equal(t, "a.pdf", entry["source"])
	assert.EqualValues(t, 3, entry["chunks"])
	assert.Same(t, log, slog.Default())
}

func TestNewText(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelWarn, Format: "text"}, &buf)

	log.Info("hidden")
	log.Warn("document failed", "stage", "fetch")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "stage=fetch")
}
