// askdb-panel serves the local control surface: configure the assistant,
// validate the setup, start and stop the engine, and trigger backups.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/askdb/askdb/internal/backup"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/db"
	"github.com/askdb/askdb/internal/engine"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/panel"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/transport"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("askdb-panel")
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

	var supervisor *engine.Supervisor
	supervisor = engine.NewSupervisor(logger, engine.AssembleBuilder(logger, effective, func() bool {
		return supervisor.Running()
	}))

	validator := panel.NewValidator(effective, panel.LiveChecks{
		Database: func(ctx context.Context) error {
			pool, err := db.Open(ctx, effective().Database)
			if err != nil {
				return err
			}
			return pool.Close()
		},
		Model: func(ctx context.Context) error {
			generator, err := llm.NewOpenAIGenerator(llm.OpenAIConfig{
				BaseURL: effective().Model.BaseURL,
				APIKey:  effective().Model.APIKey,
				Model:   effective().Model.Model,
				Timeout: effective().Model.Timeout,
			})
			if err != nil {
				return err
			}
			return generator.Check(ctx)
		},
		Telegram: func(ctx context.Context) error {
			telegram, err := transport.NewTelegram(effective().Telegram)
			if err != nil {
				return err
			}
			return telegram.CheckToken(ctx)
		},
	})

	runBackup := func(ctx context.Context) (backup.Summary, error) {
		current := effective()
		pool, err := db.Open(ctx, current.Database)
		if err != nil {
			return backup.Summary{}, err
		}
		defer func() { _ = pool.Close() }()

		var uploader *backup.Uploader
		if current.Backup.Upload {
			uploader, err = backup.NewUploader(current.Backup)
			if err != nil {
				return backup.Summary{}, err
			}
		}
		dumper := backup.NewDumper(pool, schema.NewProvider(pool, current.Pipeline.SchemaTTL))
		return backup.NewService(logger, dumper, uploader, current.Backup.Dir).Run(ctx)
	}

	handler := panel.NewHandler(cfg, panel.Dependencies{
		Logger:    logger,
		Config:    effective,
		Store:     store,
		Validator: validator,
		Engine:    supervisor,
		Backup:    runBackup,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting control panel", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("control panel failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if supervisor.Running() {
		logger.Info("stopping engine")
		if err := supervisor.Stop(shutdownCtx); err != nil {
			logger.Error("engine shutdown failed", slog.Any("error", err))
		}
	}

	logger.Info("shutting down control panel")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
