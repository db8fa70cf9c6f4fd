package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the chat backend.
type Config struct {
	BindAddr         string
	DataDir          string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	OllamaURL    string
	OllamaModel  string
	SystemPrompt string

	HistoryWindow int
	PreviewMax    int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":5000"),
		DataDir:          envOrDefault("APP_DATA_DIR", "data"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "parley"),
		OllamaURL:        strings.TrimSpace(os.Getenv("OLLAMA_URL")),
		OllamaModel:      envOrDefault("OLLAMA_MODEL", "llama2"),
		SystemPrompt:     strings.TrimSpace(os.Getenv("APP_SYSTEM_PROMPT")),
		HistoryWindow:    10,
		PreviewMax:       100,
		ShutdownTimeout:  15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryWindow, err = intFromEnv("APP_HISTORY_WINDOW", cfg.HistoryWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.PreviewMax, err = intFromEnv("APP_PREVIEW_MAX", cfg.PreviewMax)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		return Config{}, fmt.Errorf("APP_DATA_DIR must not be empty")
	}
	if cfg.HistoryWindow <= 0 {
		return Config{}, fmt.Errorf("APP_HISTORY_WINDOW must be positive")
	}
	if cfg.PreviewMax <= 0 {
		return Config{}, fmt.Errorf("APP_PREVIEW_MAX must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
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
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
