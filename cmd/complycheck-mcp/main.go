// Package main provides the entry point for the complycheck MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/complycheck/internal/app"
	"github.com/raphaelgruber/complycheck/internal/config"
	"github.com/raphaelgruber/complycheck/internal/server"
	"github.com/raphaelgruber/complycheck/internal/tools"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()

	logger.Info("complycheck-mcp starting",
		"version", version,
		"llm_model", cfg.LLMModel,
		"embed_model", cfg.EmbedModel,
		"checklists_dir", cfg.ChecklistsDir,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("stopping tasks")
		_ = a.Close(context.Background())
	}()

	srv := server.New(version, &tools.Dependencies{
		Tasks:   a.Tasks,
		Catalog: a.Catalog,
		Results: a.Results,
		Logger:  logger,
	}, logger)

	logger.Info("server ready, awaiting connections")

	// Run server (blocks until disconnect or context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
