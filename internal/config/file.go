package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileConfig is the subset of settings the control panel persists between
// sessions. Field names are explicit and typed; there is no free-form
// key/value blob. Zero values mean "not set" and leave the env-derived
// value untouched on overlay.
type FileConfig struct {
	DatabaseDSN    string `json:"database_dsn,omitempty"`
	ModelBaseURL   string `json:"model_base_url,omitempty"`
	ModelAPIKey    string `json:"model_api_key,omitempty"`
	ModelName      string `json:"model_name,omitempty"`
	TelegramToken  string `json:"telegram_bot_token,omitempty"`
	AllowedSenders string `json:"allowed_senders,omitempty"`
	WriteSenders   string `json:"write_senders,omitempty"`
	OpenAccess     *bool  `json:"open_access,omitempty"`
	ShowSQL        *bool  `json:"show_sql,omitempty"`
}

// Store reads and writes the panel's config file. Writes go through a temp
// file so a crash mid-save never leaves a truncated config behind.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// FilePathFromEnv resolves where the panel's config file lives.
func FilePathFromEnv() string {
	if path := strings.TrimSpace(os.Getenv("ASKDB_CONFIG_FILE")); path != "" {
		return path
	}
	return "askdb.json"
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted config, or a zero FileConfig when no file
// exists yet.
func (s *Store) Load() (FileConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("read config file: %w", err)
	}

	var fc FileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config file: %w", err)
	}
	return fc, nil
}

func (s *Store) Save(fc FileConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config file: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

// Overlay applies non-empty file settings on top of an env-derived Config.
func Overlay(cfg Config, fc FileConfig) Config {
	if v := strings.TrimSpace(fc.DatabaseDSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(fc.ModelBaseURL); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := strings.TrimSpace(fc.ModelAPIKey); v != "" {
		cfg.Model.APIKey = v
	}
	if v := strings.TrimSpace(fc.ModelName); v != "" {
		cfg.Model.Model = v
	}
	if v := strings.TrimSpace(fc.TelegramToken); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := strings.TrimSpace(fc.AllowedSenders); v != "" {
		cfg.Pipeline.AllowedSenders = v
	}
	if v := strings.TrimSpace(fc.WriteSenders); v != "" {
		cfg.Pipeline.WriteSenders = v
	}
	if fc.OpenAccess != nil {
		cfg.Pipeline.OpenAccess = *fc.OpenAccess
	}
	if fc.ShowSQL != nil {
		cfg.Pipeline.ShowSQL = *fc.ShowSQL
	}
	return cfg
}
