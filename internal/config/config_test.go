package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.BrainMode != "auto" {
		t.Fatalf("BrainMode = %q, want %q", cfg.BrainMode, "auto")
	}
	if cfg.BrainHTTPURL != "" {
		t.Fatalf("BrainHTTPURL = %q, want empty default", cfg.BrainHTTPURL)
	}
	if !cfg.MemoryEnabled || !cfg.RAGEnabled || !cfg.EmpathyEnabled {
		t.Fatalf("feature gates default off: %+v", cfg)
	}
	if cfg.ExtractionSentinel != "No key information" {
		t.Fatalf("ExtractionSentinel = %q", cfg.ExtractionSentinel)
	}
	if cfg.HistoryLimitPairs != 12 {
		t.Fatalf("HistoryLimitPairs = %d, want 12", cfg.HistoryLimitPairs)
	}
}

func TestLoadExplicitOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("BRAIN_HTTP_URL", "http://localhost:7777/v1")
	t.Setenv("MEMORY_ENABLED", "false")
	t.Setenv("MEMORY_MIN_AGE_DAYS", "3")
	t.Setenv("SAMPLING_TEMPERATURE", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BrainHTTPURL != "http://localhost:7777/v1" {
		t.Fatalf("BrainHTTPURL = %q, want explicit value", cfg.BrainHTTPURL)
	}
	if cfg.MemoryEnabled {
		t.Fatal("MemoryEnabled = true, want false")
	}
	if cfg.MemoryMinAgeDays != 3 {
		t.Fatalf("MemoryMinAgeDays = %d, want 3", cfg.MemoryMinAgeDays)
	}
	if cfg.Temperature != 0.5 {
		t.Fatalf("Temperature = %v, want 0.5", cfg.Temperature)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("SAMPLING_TEMPERATURE", "3.5")
	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted out-of-range temperature")
	}

	setCoreEnvEmpty(t)
	t.Setenv("RAG_TOP_K", "0")
	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted zero RAG_TOP_K")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"DATABASE_URL",
		"EMBRA_SQLITE_PATH",
		"BRAIN_ADAPTER_MODE",
		"BRAIN_HTTP_URL",
		"BRAIN_API_KEY",
		"BRAIN_GATEWAY_URL",
		"BRAIN_GATEWAY_TOKEN",
		"EMBEDDING_URL",
		"EMBEDDING_MODEL",
		"EMBEDDING_DIM",
		"DEFAULT_PROVIDER",
		"DEFAULT_MODEL",
		"LOCAL_MODEL",
		"EMPATHY_ENABLED",
		"MEMORY_ENABLED",
		"RAG_ENABLED",
		"HISTORY_LIMIT_PAIRS",
		"MEMORY_MIN_AGE_DAYS",
		"MEMORY_RETRIEVAL_LIMIT",
		"RAG_TOP_K",
		"STREAM_MIN_CHARS",
		"SAMPLING_TEMPERATURE",
		"SAMPLING_TOP_P",
		"SAMPLING_MAX_TOKENS",
		"EMBRA_BASE_CONTEXT",
		"MEMORY_SENTINEL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
