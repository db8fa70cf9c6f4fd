package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/tmcfarlane/parley/internal/analytics"
	"github.com/tmcfarlane/parley/internal/assistant"
	"github.com/tmcfarlane/parley/internal/auth"
	"github.com/tmcfarlane/parley/internal/chat"
	"github.com/tmcfarlane/parley/internal/config"
	"github.com/tmcfarlane/parley/internal/httpapi"
	"github.com/tmcfarlane/parley/internal/observability"
	"github.com/tmcfarlane/parley/internal/storage"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config error", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	usersBackend, err := storage.NewFileBackend(filepath.Join(cfg.DataDir, "users"))
	if err != nil {
		log.Error("users storage init failed", "error", err)
		os.Exit(1)
	}
	sessionsBackend, err := storage.NewFileBackend(filepath.Join(cfg.DataDir, "sessions"))
	if err != nil {
		log.Error("sessions storage init failed", "error", err)
		os.Exit(1)
	}

	accounts := auth.NewStore(usersBackend, log.With("component", "auth"))
	sessions := chat.NewStore(sessionsBackend, accounts, log.With("component", "chat"), chat.Config{
		HistoryWindow: cfg.HistoryWindow,
		PreviewMax:    cfg.PreviewMax,
	})

	collector, err := analytics.NewCollector(filepath.Join(cfg.DataDir, "analytics.jsonl"), log.With("component", "analytics"))
	if err != nil {
		log.Error("analytics init failed", "error", err)
		os.Exit(1)
	}
	defer collector.Close()

	var client assistant.Client
	if strings.TrimSpace(cfg.OllamaURL) != "" {
		client = assistant.NewOllamaClient(assistant.OllamaConfig{
			BaseURL:      cfg.OllamaURL,
			Model:        cfg.OllamaModel,
			SystemPrompt: cfg.SystemPrompt,
		})
		log.Info("assistant provider: ollama", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
	} else {
		client = assistant.NewMockClient()
		log.Info("assistant provider: mock (OLLAMA_URL not set)")
	}

	api := httpapi.New(cfg, accounts, sessions, client, collector, metrics, log.With("component", "httpapi"))
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Info("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen error", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	log.Info("shutdown complete")
}
