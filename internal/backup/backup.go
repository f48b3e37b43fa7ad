// Package backup writes point-in-time SQL dumps of the target database and
// optionally ships them to object storage.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/askdb/askdb/internal/observability"
)

type Summary struct {
	File        string        `json:"file"`
	Tables      int           `json:"tables"`
	Rows        int           `json:"rows"`
	Bytes       int64         `json:"bytes"`
	UploadedKey string        `json:"uploaded_key,omitempty"`
	Duration    time.Duration `json:"duration"`
}

type Service struct {
	logger   *slog.Logger
	dumper   *Dumper
	uploader *Uploader
	dir      string
}

// NewService wires a backup run. uploader may be nil, in which case dumps
// stay local.
func NewService(logger *slog.Logger, dumper *Dumper, uploader *Uploader, dir string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = "backups"
	}
	return &Service{logger: logger, dumper: dumper, uploader: uploader, dir: dir}
}

// Run produces one timestamped dump file and returns what it contains.
func (s *Service) Run(ctx context.Context) (summary Summary, err error) {
	defer func() { observability.ObserveBackupRun(err) }()

	start := time.Now()
	if err = os.MkdirAll(s.dir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create backup dir: %w", err)
	}

	name := fmt.Sprintf("askdb-backup-%s.sql", start.UTC().Format("20060102-150405"))
	fullPath := filepath.Join(s.dir, name)
	file, err := os.Create(fullPath)
	if err != nil {
		return Summary{}, fmt.Errorf("create backup file: %w", err)
	}

	tables, rows, dumpErr := s.dumper.Dump(ctx, file)
	closeErr := file.Close()
	if dumpErr != nil {
		os.Remove(fullPath)
		err = dumpErr
		return Summary{}, err
	}
	if closeErr != nil {
		err = fmt.Errorf("close backup file: %w", closeErr)
		return Summary{}, err
	}

	info, statErr := os.Stat(fullPath)
	if statErr != nil {
		err = statErr
		return Summary{}, err
	}

	summary = Summary{
		File:   fullPath,
		Tables: tables,
		Rows:   rows,
		Bytes:  info.Size(),
	}

	if s.uploader != nil {
		reader, openErr := os.Open(fullPath)
		if openErr != nil {
			err = openErr
			return Summary{}, err
		}
		key, uploadErr := s.uploader.Upload(ctx, name, reader, info.Size())
		reader.Close()
		if uploadErr != nil {
			err = uploadErr
			return Summary{}, err
		}
		summary.UploadedKey = key
	}

	summary.Duration = time.Since(start)
	s.logger.Info("backup complete",
		"file", summary.File, "tables", summary.Tables, "rows", summary.Rows,
		"bytes", summary.Bytes, "uploaded", summary.UploadedKey != "", "duration", summary.Duration)
	return summary, nil
}
