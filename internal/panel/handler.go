// Package panel is the local control surface: a small HTTP API for
// configuring, validating, starting, and stopping the assistant engine.
package panel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/askdb/askdb/internal/backup"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/engine"
	"github.com/askdb/askdb/internal/observability"
)

// EngineControl is the slice of the supervisor the panel drives.
type EngineControl interface {
	Phase() engine.Phase
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Dependencies struct {
	Logger *slog.Logger
	// Config returns the current effective configuration (env overlaid
	// with the persisted file).
	Config    func() config.Config
	Store     *config.Store
	Validator *Validator
	Engine    EngineControl
	// Backup runs one backup; nil disables the endpoint.
	Backup func(ctx context.Context) (backup.Summary, error)
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/config", func(w http.ResponseWriter, r *http.Request) {
		handleGetConfig(deps, w, r)
	})
	mux.HandleFunc("PUT /v1/config", func(w http.ResponseWriter, r *http.Request) {
		handlePutConfig(deps, w, r)
	})
	mux.HandleFunc("POST /v1/validate", func(w http.ResponseWriter, r *http.Request) {
		handleValidate(deps, w, r)
	})
	mux.HandleFunc("GET /v1/engine", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"phase": deps.Engine.Phase()})
	})
	mux.HandleFunc("POST /v1/engine/start", func(w http.ResponseWriter, r *http.Request) {
		handleEngineStart(deps, w, r)
	})
	mux.HandleFunc("POST /v1/engine/stop", func(w http.ResponseWriter, r *http.Request) {
		handleEngineStop(deps, w, r)
	})
	mux.HandleFunc("POST /v1/backup/run", func(w http.ResponseWriter, r *http.Request) {
		handleBackupRun(deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// configView is the redacted configuration shown to the operator. Secrets
// report presence only, never their value.
type configView struct {
	Profile        config.Profile `json:"profile"`
	DatabaseDSN    string         `json:"database_dsn"`
	ModelBaseURL   string         `json:"model_base_url"`
	ModelName      string         `json:"model_name"`
	ModelAPIKeySet bool           `json:"model_api_key_set"`
	TelegramSet    bool           `json:"telegram_bot_token_set"`
	AllowedSenders string         `json:"allowed_senders"`
	WriteSenders   string         `json:"write_senders"`
	OpenAccess     bool           `json:"open_access"`
	ShowSQL        bool           `json:"show_sql"`
	RowCap         int            `json:"row_cap"`
	DisplayRows    int            `json:"display_rows"`
	QueryTimeout   string         `json:"query_timeout"`
	BackupUpload   bool           `json:"backup_upload"`
}

func handleGetConfig(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	cfg := deps.Config()
	writeJSON(w, http.StatusOK, configView{
		Profile:        cfg.Profile,
		DatabaseDSN:    observability.Mask(cfg.Database.DSN),
		ModelBaseURL:   cfg.Model.BaseURL,
		ModelName:      cfg.Model.Model,
		ModelAPIKeySet: cfg.Model.APIKey != "",
		TelegramSet:    cfg.Telegram.BotToken != "",
		AllowedSenders: cfg.Pipeline.AllowedSenders,
		WriteSenders:   cfg.Pipeline.WriteSenders,
		OpenAccess:     cfg.Pipeline.OpenAccess,
		ShowSQL:        cfg.Pipeline.ShowSQL,
		RowCap:         cfg.Pipeline.RowCap,
		DisplayRows:    cfg.Pipeline.DisplayRows,
		QueryTimeout:   cfg.Pipeline.QueryTimeout.String(),
		BackupUpload:   cfg.Backup.Upload,
	})
}

func handlePutConfig(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CONFIG_STORE_DISABLED", "no config file is configured", false, nil)
		return
	}
	var fc config.FileConfig
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fc); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_CONFIG", err.Error(), false, nil)
		return
	}
	if err := deps.Store.Save(fc); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "CONFIG_SAVE_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": true, "path": deps.Store.Path()})
}

func handleValidate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	writeJSON(w, http.StatusOK, deps.Validator.Probe(ctx))
}

// handleEngineStart refuses to start an engine that validation says cannot
// come up; the operator gets the problem list instead of a crash loop.
func handleEngineStart(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result := deps.Validator.Probe(ctx)
	if !result.Success {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "CONFIG_INVALID",
			"configuration is not ready", false, map[string]any{"problems": result.Problems})
		return
	}
	if err := deps.Engine.Start(ctx); err != nil {
		writeError(r.Context(), w, http.StatusConflict, "ENGINE_START_FAILED",
			observability.Mask(err.Error()), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phase": deps.Engine.Phase()})
}

func handleEngineStop(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := deps.Engine.Stop(ctx); err != nil {
		writeError(r.Context(), w, http.StatusConflict, "ENGINE_STOP_FAILED",
			observability.Mask(err.Error()), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phase": deps.Engine.Phase()})
}

func handleBackupRun(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Backup == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "BACKUP_DISABLED", "backups are not configured", false, nil)
		return
	}
	summary, err := deps.Backup(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "BACKUP_FAILED",
			observability.Mask(err.Error()), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
