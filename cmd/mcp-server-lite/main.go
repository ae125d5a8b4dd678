// Package main provides the lightweight MCP entry point.
// It needs no external services: sessions live in a local SQLite file.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/assessment-results-server/internal/app"
	"github.com/assessment-results-server/internal/config"
	"github.com/assessment-results-server/internal/logging"
	"github.com/assessment-results-server/internal/mcp"
)

func main() {
	// Load lightweight configuration
	liteCfg := config.LoadLiteConfig()
	if err := liteCfg.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	cfg := liteCfg.ToConfig()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	logger.WithField("transport", liteCfg.Transport).
		WithField("data_dir", liteCfg.DataDir).
		Info("Starting assessment results MCP server (lite)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	server := mcp.NewServer(application)
	if err := server.Start(ctx, liteCfg.Transport, liteCfg.HTTPPort); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("MCP server stopped")
}
