package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the companion service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Storage: postgres when DATABASE_URL is set, otherwise sqlite at
	// SQLitePath, otherwise in-memory.
	DatabaseURL string
	SQLitePath  string

	BrainMode         string
	BrainHTTPURL      string
	BrainAPIKey       string
	BrainGatewayURL   string
	BrainGatewayToken string

	EmbeddingURL   string
	EmbeddingModel string
	EmbeddingDim   int

	DefaultProvider string
	DefaultModel    string
	LocalModel      string

	EmpathyEnabled bool
	MemoryEnabled  bool
	RAGEnabled     bool

	HistoryLimitPairs    int
	MemoryMinAgeDays     int
	MemoryRetrievalLimit int
	RAGTopK              int
	StreamMinChars       int

	Temperature float64
	TopP        float64
	MaxTokens   int

	BaseContext        string
	ExtractionSentinel string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "embra"),
		AllowAnyOrigin:   false,
		DatabaseURL:      trimmedEnv("DATABASE_URL"),
		SQLitePath:       envOrDefault("EMBRA_SQLITE_PATH", ".data/embra.db"),

		BrainMode:         envOrDefault("BRAIN_ADAPTER_MODE", "auto"),
		BrainHTTPURL:      trimmedEnv("BRAIN_HTTP_URL"),
		BrainAPIKey:       trimmedEnv("BRAIN_API_KEY"),
		BrainGatewayURL:   trimmedEnv("BRAIN_GATEWAY_URL"),
		BrainGatewayToken: trimmedEnv("BRAIN_GATEWAY_TOKEN"),

		EmbeddingURL:   envOrDefault("EMBEDDING_URL", "http://127.0.0.1:11434"),
		EmbeddingModel: envOrDefault("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:   768,

		DefaultProvider: envOrDefault("DEFAULT_PROVIDER", "openai"),
		DefaultModel:    envOrDefault("DEFAULT_MODEL", "gpt-4o-mini"),
		LocalModel:      trimmedEnv("LOCAL_MODEL"),

		EmpathyEnabled: true,
		MemoryEnabled:  true,
		RAGEnabled:     true,

		HistoryLimitPairs:    12,
		MemoryMinAgeDays:     1,
		MemoryRetrievalLimit: 5,
		RAGTopK:              3,
		StreamMinChars:       48,

		Temperature: 0.8,
		TopP:        1.0,
		MaxTokens:   1024,

		BaseContext:        trimmedEnv("EMBRA_BASE_CONTEXT"),
		ExtractionSentinel: envOrDefault("MEMORY_SENTINEL", "No key information"),

		ShutdownTimeout: 15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDim, err = intFromEnv("EMBEDDING_DIM", cfg.EmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.EmpathyEnabled, err = boolFromEnv("EMPATHY_ENABLED", cfg.EmpathyEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryEnabled, err = boolFromEnv("MEMORY_ENABLED", cfg.MemoryEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.RAGEnabled, err = boolFromEnv("RAG_ENABLED", cfg.RAGEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimitPairs, err = intFromEnv("HISTORY_LIMIT_PAIRS", cfg.HistoryLimitPairs)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryMinAgeDays, err = intFromEnv("MEMORY_MIN_AGE_DAYS", cfg.MemoryMinAgeDays)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryRetrievalLimit, err = intFromEnv("MEMORY_RETRIEVAL_LIMIT", cfg.MemoryRetrievalLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.RAGTopK, err = intFromEnv("RAG_TOP_K", cfg.RAGTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.StreamMinChars, err = intFromEnv("STREAM_MIN_CHARS", cfg.StreamMinChars)
	if err != nil {
		return Config{}, err
	}
	cfg.Temperature, err = floatFromEnv("SAMPLING_TEMPERATURE", cfg.Temperature)
	if err != nil {
		return Config{}, err
	}
	cfg.TopP, err = floatFromEnv("SAMPLING_TOP_P", cfg.TopP)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTokens, err = intFromEnv("SAMPLING_MAX_TOKENS", cfg.MaxTokens)
	if err != nil {
		return Config{}, err
	}

	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIM must be positive")
	}
	if cfg.HistoryLimitPairs < 0 {
		return Config{}, fmt.Errorf("HISTORY_LIMIT_PAIRS must be >= 0")
	}
	if cfg.MemoryMinAgeDays < 0 {
		return Config{}, fmt.Errorf("MEMORY_MIN_AGE_DAYS must be >= 0")
	}
	if cfg.MemoryRetrievalLimit <= 0 {
		return Config{}, fmt.Errorf("MEMORY_RETRIEVAL_LIMIT must be positive")
	}
	if cfg.RAGTopK <= 0 {
		return Config{}, fmt.Errorf("RAG_TOP_K must be positive")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return Config{}, fmt.Errorf("SAMPLING_TEMPERATURE must be in [0, 2]")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
