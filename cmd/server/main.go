// Package main is the entry point for the Swarm → Discord relay server.
//
// The main package stays minimal: read configuration, build the logger,
// hand everything to internal/server. All actual logic lives in imported
// packages so it can be tested without a running process.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/swarm-relay/internal/config"
	"github.com/sakif/swarm-relay/internal/server"
)

func main() {
	// Bootstrap logger at Info; replaced below once LOG_LEVEL is known.
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Configuration is environment-sourced and validated up front. A
	// missing push secret or signing key aborts startup — the relay never
	// serves half-configured.
	cfg, err := config.Load(context.Background())
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))

	// The data directory must exist before sqlite opens its file.
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
