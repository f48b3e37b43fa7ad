package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Model         ModelConfig
	Telegram      TelegramConfig
	Pipeline      PipelineConfig
	Backup        BackupConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

// HTTPConfig configures the control-panel listener.
type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type ModelConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type TelegramConfig struct {
	BaseURL     string
	BotToken    string
	PollTimeout time.Duration
}

type PipelineConfig struct {
	AllowedSenders string
	WriteSenders   string
	OpenAccess     bool
	RowCap         int
	DisplayRows    int
	QueryTimeout   time.Duration
	ShowSQL        bool
	SchemaTTL      time.Duration
}

type BackupConfig struct {
	Dir             string
	Upload          bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("ASKDB_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid ASKDB_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "ASKDB_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_DATABASE_DSN", &cfg.Database.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "ASKDB_DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "ASKDB_DATABASE_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_DATABASE_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_DATABASE_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_MODEL_BASE_URL", &cfg.Model.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_MODEL_API_KEY", &cfg.Model.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_MODEL_NAME", &cfg.Model.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "ASKDB_MODEL_TEMPERATURE", &cfg.Model.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_MODEL_TIMEOUT", &cfg.Model.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_TELEGRAM_BASE_URL", &cfg.Telegram.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_TELEGRAM_POLL_TIMEOUT", &cfg.Telegram.PollTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_PIPELINE_ALLOWED_SENDERS", &cfg.Pipeline.AllowedSenders); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_PIPELINE_WRITE_SENDERS", &cfg.Pipeline.WriteSenders); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_PIPELINE_OPEN_ACCESS", &cfg.Pipeline.OpenAccess); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "ASKDB_PIPELINE_ROW_CAP", &cfg.Pipeline.RowCap); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "ASKDB_PIPELINE_DISPLAY_ROWS", &cfg.Pipeline.DisplayRows); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_PIPELINE_QUERY_TIMEOUT", &cfg.Pipeline.QueryTimeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_PIPELINE_SHOW_SQL", &cfg.Pipeline.ShowSQL); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_PIPELINE_SCHEMA_TTL", &cfg.Pipeline.SchemaTTL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_BACKUP_DIR", &cfg.Backup.Dir); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_BACKUP_UPLOAD", &cfg.Backup.Upload); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_BACKUP_ENDPOINT", &cfg.Backup.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_BACKUP_REGION", &cfg.Backup.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_BACKUP_BUCKET", &cfg.Backup.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_BACKUP_ACCESS_KEY", &cfg.Backup.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_BACKUP_SECRET_KEY", &cfg.Backup.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_BACKUP_USE_SSL", &cfg.Backup.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_BACKUP_PREFIX", &cfg.Backup.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "ASKDB_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "askdb"},
		HTTP: HTTPConfig{
			Address:      "127.0.0.1:8321",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Model: ModelConfig{
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
			Timeout:     15 * time.Second,
		},
		Telegram: TelegramConfig{
			BaseURL:     "https://api.telegram.org",
			PollTimeout: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			OpenAccess:   false,
			RowCap:       200,
			DisplayRows:  15,
			QueryTimeout: 10 * time.Second,
			ShowSQL:      false,
			SchemaTTL:    5 * time.Minute,
		},
		Backup: BackupConfig{
			Dir:    "backups",
			Region: "us-east-1",
			Bucket: "askdb-backups",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = "127.0.0.1:18321"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Backup.UseSSL = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
