package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.RetrievalK)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.TaskRetention)
	assert.Equal(t, IndexStoreMemory, cfg.IndexStore)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("COMPLYCHECK_CHUNK_SIZE", "500")
	t.Setenv("COMPLYCHECK_CHUNK_OVERLAP", "50")
	t.Setenv("COMPLYCHECK_TASK_RETENTION", "15m")
	t.Setenv("COMPLYCHECK_LLM_RPS", "0.5")
	t.Setenv("COMPLYCHECK_LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 15*time.Minute, cfg.TaskRetention)
	assert.InDelta(t, 0.5, cfg.LLMRequestsPerSecond, 1e-9)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("COMPLYCHECK_RETRIEVAL_K", "many")
	t.Setenv("COMPLYCHECK_MAX_BACKOFF", "soon")

	cfg := Load()

	assert.Equal(t, 5, cfg.RetrievalK)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, "chunk size"},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }, "overlap"},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, "overlap"},
		{"zero batch", func(c *Config) { c.EmbedBatchSize = 0 }, "batch size"},
		{"zero concurrency", func(c *Config) { c.EmbedConcurrency = 0 }, "concurrency"},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, "attempts"},
		{"unknown store", func(c *Config) { c.IndexStore = "redis" }, "index store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("task submitted", "task_id", "abc12345")
	logger.Debug("hidden")

	assert.Contains(t, stderr.String(), "task_id=abc12345")
	assert.NotContains(t, stderr.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(file.Bytes()), &entry))
	assert.Equal(t, "task submitted", entry["msg"])
	assert.Equal(t, "abc12345", entry["task_id"])
}

func TestSetupLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "complycheck.log")

	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"hello"`), "log file should contain JSON entry, got %q", data)
}
