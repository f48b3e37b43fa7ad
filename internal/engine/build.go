package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/db"
	"github.com/askdb/askdb/internal/execute"
	"github.com/askdb/askdb/internal/format"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/pipeline"
	"github.com/askdb/askdb/internal/policy"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/transport"
)

// AssembleBuilder wires the full question pipeline from configuration.
// configFn is re-evaluated on every start so panel-saved settings take
// effect without a process restart. The build fails fast: database,
// schema, and bot token are all checked before the engine reports Running.
func AssembleBuilder(logger *slog.Logger, configFn func() config.Config, running func() bool) Builder {
	return func(ctx context.Context) (*Runtime, error) {
		cfg := configFn()

		database, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}

		provider := schema.NewProvider(database, cfg.Pipeline.SchemaTTL)
		if _, err := provider.Refresh(ctx); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("initial schema read: %w", err)
		}

		generator, err := llm.NewOpenAIGenerator(llm.OpenAIConfig{
			BaseURL:     cfg.Model.BaseURL,
			APIKey:      cfg.Model.APIKey,
			Model:       cfg.Model.Model,
			Temperature: cfg.Model.Temperature,
			Timeout:     cfg.Model.Timeout,
		})
		if err != nil {
			_ = database.Close()
			return nil, err
		}

		telegram, err := transport.NewTelegram(cfg.Telegram)
		if err != nil {
			_ = database.Close()
			return nil, err
		}
		if err := telegram.CheckToken(ctx); err != nil {
			_ = database.Close()
			return nil, err
		}

		dispatcher := pipeline.NewDispatcher(context.Background(), pipeline.Dependencies{
			Logger:    logger,
			Schema:    provider,
			Generator: generator,
			Runner: execute.New(database, execute.Options{
				RowCap:  cfg.Pipeline.RowCap,
				Timeout: cfg.Pipeline.QueryTimeout,
			}),
			Replier: telegram,
			Policy: policy.Parse(cfg.Pipeline.AllowedSenders,
				cfg.Pipeline.WriteSenders, cfg.Pipeline.OpenAccess),
			Formatter: format.New(format.Options{
				ShowSQL:        cfg.Pipeline.ShowSQL,
				MaxDisplayRows: cfg.Pipeline.DisplayRows,
			}),
			Running: running,
		})

		return &Runtime{
			Receive: func(runCtx context.Context) error {
				return telegram.Poll(runCtx, func(m transport.Message) {
					dispatcher.Dispatch(pipeline.Question{
						Sender:     m.Sender,
						Chat:       m.Chat,
						Text:       m.Text,
						ReceivedAt: m.ReceivedAt,
					})
				})
			},
			Drain: dispatcher.Drain,
			Close: database.Close,
		}, nil
	}
}
