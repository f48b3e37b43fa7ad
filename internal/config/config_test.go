package config

import (
	"log/slog"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("askdb-engine", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.Service.Name != "askdb-engine" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != "127.0.0.1:8321" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Pipeline.RowCap != 200 {
		t.Fatalf("Pipeline.RowCap = %d", cfg.Pipeline.RowCap)
	}
	if cfg.Pipeline.DisplayRows != 15 {
		t.Fatalf("Pipeline.DisplayRows = %d", cfg.Pipeline.DisplayRows)
	}
	if cfg.Pipeline.OpenAccess {
		t.Fatal("Pipeline.OpenAccess should default to false")
	}
	if cfg.Pipeline.QueryTimeout != 10*time.Second {
		t.Fatalf("Pipeline.QueryTimeout = %v", cfg.Pipeline.QueryTimeout)
	}
	if cfg.Model.Timeout != 15*time.Second {
		t.Fatalf("Model.Timeout = %v", cfg.Model.Timeout)
	}
	if cfg.Telegram.BaseURL != "https://api.telegram.org" {
		t.Fatalf("Telegram.BaseURL = %q", cfg.Telegram.BaseURL)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("askdb-engine", mapLookup(map[string]string{
		"ASKDB_PROFILE":                  "prod",
		"ASKDB_DATABASE_DSN":             "postgres://bot:secret@db:5432/shop",
		"ASKDB_MODEL_API_KEY":            "sk-test",
		"ASKDB_PIPELINE_ROW_CAP":         "50",
		"ASKDB_PIPELINE_QUERY_TIMEOUT":   "3s",
		"ASKDB_PIPELINE_ALLOWED_SENDERS": "100,200",
		"ASKDB_PIPELINE_SHOW_SQL":        "true",
		"ASKDB_LOG_JSON":                 "false",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q", cfg.Profile)
	}
	if cfg.Database.DSN != "postgres://bot:secret@db:5432/shop" {
		t.Fatalf("Database.DSN = %q", cfg.Database.DSN)
	}
	if cfg.Pipeline.RowCap != 50 {
		t.Fatalf("Pipeline.RowCap = %d", cfg.Pipeline.RowCap)
	}
	if cfg.Pipeline.QueryTimeout != 3*time.Second {
		t.Fatalf("Pipeline.QueryTimeout = %v", cfg.Pipeline.QueryTimeout)
	}
	if !cfg.Pipeline.ShowSQL {
		t.Fatal("Pipeline.ShowSQL should be true")
	}
	if cfg.Observability.LogJSON {
		t.Fatal("Observability.LogJSON should be false")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	if _, err := Load("askdb-engine", mapLookup(map[string]string{"ASKDB_PROFILE": "staging"})); err == nil {
		t.Fatal("Load() should reject unknown profile")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	if _, err := Load("askdb-engine", mapLookup(map[string]string{"ASKDB_MODEL_TIMEOUT": "soon"})); err == nil {
		t.Fatal("Load() should reject malformed duration")
	}
}

func TestProblemsEnumeratesMissingCapabilities(t *testing.T) {
	cfg, err := Load("askdb-engine", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	problems := cfg.Problems()
	want := []string{
		"database: connection string is not configured",
		"model: API key is not configured",
		"telegram: bot token is not configured",
		"authorization: no allowed senders configured and open access is disabled",
	}
	if len(problems) != len(want) {
		t.Fatalf("Problems() = %v", problems)
	}
	for i, p := range want {
		if problems[i] != p {
			t.Fatalf("Problems()[%d] = %q, want %q", i, problems[i], p)
		}
	}
}

func TestProblemsEmptyForCompleteConfig(t *testing.T) {
	cfg, err := Load("askdb-engine", mapLookup(map[string]string{
		"ASKDB_DATABASE_DSN":           "postgres://bot:secret@db:5432/shop",
		"ASKDB_MODEL_API_KEY":          "sk-test",
		"ASKDB_TELEGRAM_BOT_TOKEN":     "123:abc",
		"ASKDB_PIPELINE_OPEN_ACCESS":   "true",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if problems := cfg.Problems(); len(problems) != 0 {
		t.Fatalf("Problems() = %v, want none", problems)
	}
}

func TestProblemsForUploadWithoutEndpoint(t *testing.T) {
	cfg, err := Load("askdb-engine", mapLookup(map[string]string{
		"ASKDB_DATABASE_DSN":         "postgres://bot:secret@db:5432/shop",
		"ASKDB_MODEL_API_KEY":        "sk-test",
		"ASKDB_TELEGRAM_BOT_TOKEN":   "123:abc",
		"ASKDB_PIPELINE_OPEN_ACCESS": "true",
		"ASKDB_BACKUP_UPLOAD":        "true",
		"ASKDB_BACKUP_BUCKET":        "dumps",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	problems := cfg.Problems()
	if len(problems) != 1 {
		t.Fatalf("Problems() = %v", problems)
	}
	if problems[0] != "backup: upload enabled but object store endpoint is not configured" {
		t.Fatalf("Problems()[0] = %q", problems[0])
	}
}
