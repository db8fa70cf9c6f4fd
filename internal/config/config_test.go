package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":5000" {
		t.Fatalf("BindAddr = %q, want :5000", cfg.BindAddr)
	}
	if cfg.DataDir != "data" {
		t.Fatalf("DataDir = %q, want data", cfg.DataDir)
	}
	if cfg.HistoryWindow != 10 || cfg.PreviewMax != 100 {
		t.Fatalf("windows = %d/%d, want 10/100", cfg.HistoryWindow, cfg.PreviewMax)
	}
	if cfg.OllamaURL != "" {
		t.Fatalf("OllamaURL = %q, want empty default", cfg.OllamaURL)
	}
	if cfg.OllamaModel != "llama2" {
		t.Fatalf("OllamaModel = %q, want llama2", cfg.OllamaModel)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("APP_HISTORY_WINDOW", "20")
	t.Setenv("OLLAMA_URL", "http://localhost:11434")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want :9090", cfg.BindAddr)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}
	if cfg.HistoryWindow != 20 {
		t.Fatalf("HistoryWindow = %d, want 20", cfg.HistoryWindow)
	}
	if cfg.OllamaURL != "http://localhost:11434" {
		t.Fatalf("OllamaURL = %q", cfg.OllamaURL)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_HISTORY_WINDOW", "-3")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() accepted negative history window")
	}

	setCoreEnvEmpty(t)
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() accepted malformed duration")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_DATA_DIR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_SYSTEM_PROMPT",
		"APP_HISTORY_WINDOW",
		"APP_PREVIEW_MAX",
		"OLLAMA_URL",
		"OLLAMA_MODEL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
