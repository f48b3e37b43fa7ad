// askdb-engine runs the assistant headless: it starts the engine once and
// answers questions until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/engine"
	"github.com/askdb/askdb/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("askdb-engine")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	store := config.NewStore(config.FilePathFromEnv())

	effective := func() config.Config {
		fc, err := store.Load()
		if err != nil {
			logger.Warn("config file unreadable, using environment only", slog.Any("error", err))
			return cfg
		}
		return config.Overlay(cfg, fc)
	}

	if problems := effective().Problems(); len(problems) > 0 {
		for _, problem := range problems {
			logger.Error("configuration problem", slog.String("problem", problem))
		}
		os.Exit(1)
	}

	var supervisor *engine.Supervisor
	supervisor = engine.NewSupervisor(logger, engine.AssembleBuilder(logger, effective, func() bool {
		return supervisor.Running()
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := supervisor.Start(ctx); err != nil {
		logger.Error("engine failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Info("shutting down engine")
	if err := supervisor.Stop(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
}
