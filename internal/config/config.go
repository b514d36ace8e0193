// Package config loads complycheck settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported LLM and embedding providers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Index store backends.
const (
	IndexStoreMemory    = "memory"
	IndexStoreSurrealDB = "surrealdb"
)

// Config holds all configuration values.
type Config struct {
	// Reasoning model
	LLMProvider          string
	LLMModel             string
	LLMMaxTokens         int
	LLMRequestsPerSecond float64

	// Embeddings
	EmbedProvider    string
	EmbedModel       string
	EmbedDimension   int
	EmbedBatchSize   int
	EmbedConcurrency int

	// Provider credentials / endpoints
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string

	// Indexing and retrieval
	ChunkSize      int
	ChunkOverlap   int
	RetrievalK     int
	IndexCacheSize int
	IndexStore     string
	PDFToTextPath  string

	// Retry policy for embedding and reasoning calls
	MaxAttempts            int
	BackoffBase            time.Duration
	MaxBackoff             time.Duration
	MaxConsecutiveFailures int

	// SurrealDB connection (index store)
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Server and tasks
	ServerPort       string
	ServerURL        string
	ResultsDir       string
	ChecklistsDir    string
	TaskRetention    time.Duration
	SubscriberBuffer int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		LLMProvider:          getEnv("COMPLYCHECK_LLM_PROVIDER", ProviderOpenAI),
		LLMModel:             getEnv("COMPLYCHECK_LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:         getEnvInt("COMPLYCHECK_LLM_MAX_TOKENS", 1000),
		LLMRequestsPerSecond: getEnvFloat("COMPLYCHECK_LLM_RPS", 2),

		EmbedProvider:    getEnv("COMPLYCHECK_EMBED_PROVIDER", ProviderOpenAI),
		EmbedModel:       getEnv("COMPLYCHECK_EMBED_MODEL", "text-embedding-3-small"),
		EmbedDimension:   getEnvInt("COMPLYCHECK_EMBED_DIMENSION", 1536),
		EmbedBatchSize:   getEnvInt("COMPLYCHECK_EMBED_BATCH_SIZE", 32),
		EmbedConcurrency: getEnvInt("COMPLYCHECK_EMBED_CONCURRENCY", 2),

		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		ChunkSize:      getEnvInt("COMPLYCHECK_CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvInt("COMPLYCHECK_CHUNK_OVERLAP", 200),
		RetrievalK:     getEnvInt("COMPLYCHECK_RETRIEVAL_K", 5),
		IndexCacheSize: getEnvInt("COMPLYCHECK_INDEX_CACHE_SIZE", 16),
		IndexStore:     getEnv("COMPLYCHECK_INDEX_STORE", IndexStoreMemory),
		PDFToTextPath:  getEnv("COMPLYCHECK_PDFTOTEXT", "pdftotext"),

		MaxAttempts:            getEnvInt("COMPLYCHECK_MAX_ATTEMPTS", 3),
		BackoffBase:            getEnvDuration("COMPLYCHECK_BACKOFF_BASE", 2*time.Second),
		MaxBackoff:             getEnvDuration("COMPLYCHECK_MAX_BACKOFF", 30*time.Second),
		MaxConsecutiveFailures: getEnvInt("COMPLYCHECK_MAX_CONSECUTIVE_FAILURES", 3),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "complycheck"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "indexes"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		ServerPort:       getEnv("COMPLYCHECK_SERVER_PORT", "8585"),
		ServerURL:        getEnv("COMPLYCHECK_SERVER_URL", "http://localhost:8585"),
		ResultsDir:       getEnv("COMPLYCHECK_RESULTS_DIR", "results"),
		ChecklistsDir:    getEnv("COMPLYCHECK_CHECKLISTS_DIR", "checklists"),
		TaskRetention:    getEnvDuration("COMPLYCHECK_TASK_RETENTION", time.Hour),
		SubscriberBuffer: getEnvInt("COMPLYCHECK_SUBSCRIBER_BUFFER", 64),

		LogFile:  getEnv("COMPLYCHECK_LOG_FILE", "/tmp/complycheck.log"),
		LogLevel: parseLogLevel(getEnv("COMPLYCHECK_LOG_LEVEL", "INFO")),
	}
}

// Validate reports settings that would make a run meaningless.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	case c.EmbedBatchSize <= 0:
		return fmt.Errorf("embed batch size must be positive, got %d", c.EmbedBatchSize)
	case c.EmbedConcurrency <= 0:
		return fmt.Errorf("embed concurrency must be positive, got %d", c.EmbedConcurrency)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	case c.IndexStore != IndexStoreMemory && c.IndexStore != IndexStoreSurrealDB:
		return fmt.Errorf("unknown index store: %s", c.IndexStore)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", val)
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		slog.Warn("invalid number in environment, using default", "key", key, "value", val)
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", val)
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
