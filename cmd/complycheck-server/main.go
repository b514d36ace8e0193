// Package main provides the HTTP server for complycheck.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/complycheck/internal/api"
	"github.com/raphaelgruber/complycheck/internal/app"
	"github.com/raphaelgruber/complycheck/internal/config"
)

func main() {
	// Parse flags
	wipeDB := flag.Bool("wipe", false, "wipe cached indexes from the database on startup")
	flag.Parse()

	cfg := config.Load()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()
	slog.SetDefault(logger)

	slog.Info("starting complycheck-server",
		"port", cfg.ServerPort,
		"llm_provider", cfg.LLMProvider,
		"embed_provider", cfg.EmbedProvider,
		"index_store", cfg.IndexStore,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	// Wipe cached indexes if requested (via flag or env var)
	if *wipeDB || os.Getenv("COMPLYCHECK_WIPE_DB") == "true" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := a.WipeData(ctx); err != nil {
			cancel()
			slog.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
		cancel()
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			slog.Error("failed to close app", "error", err)
		}
	}()

	handler := api.NewHandler(a.Tasks, a.Catalog, api.Options{
		Results: a.Results,
		Metrics: a.Metrics,
		Logger:  logger,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second, // Uploads can be large
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: task streams stay open for the whole run.
	}

	// Start server in goroutine
	go func() {
		slog.Info("API available", "url", fmt.Sprintf("http://localhost:%s/", cfg.ServerPort))
		slog.Info("metrics available", "url", fmt.Sprintf("http://localhost:%s/metrics", cfg.ServerPort))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}
