package backup

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/askdb/askdb/internal/config"
)

type objectPutter interface {
	Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error
}

// Uploader ships finished dump files to S3-compatible object storage.
type Uploader struct {
	client objectPutter
	bucket string
	prefix string
}

func NewUploader(cfg config.BackupConfig) (*Uploader, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("backup upload endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("backup upload bucket is required")
	}
	client, err := newMinioPutter(cfg)
	if err != nil {
		return nil, err
	}
	return &Uploader{
		client: client,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: cleanPrefix(cfg.Prefix),
	}, nil
}

func NewUploaderWithClient(bucket, prefix string, client objectPutter) (*Uploader, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Uploader{client: client, bucket: strings.TrimSpace(bucket), prefix: cleanPrefix(prefix)}, nil
}

// Upload stores one dump under its file name, below the configured prefix.
func (u *Uploader) Upload(ctx context.Context, name string, body io.Reader, size int64) (string, error) {
	key := strings.TrimSpace(strings.TrimPrefix(name, "/"))
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	if u.prefix != "" {
		key = path.Join(u.prefix, key)
	}
	if err := u.client.Put(ctx, u.bucket, key, body, size, "application/sql"); err != nil {
		return "", fmt.Errorf("upload backup %q: %w", key, err)
	}
	return key, nil
}

func cleanPrefix(prefix string) string {
	prefix = strings.TrimSpace(strings.TrimPrefix(prefix, "/"))
	if prefix == "" {
		return ""
	}
	prefix = path.Clean(prefix)
	if prefix == "." {
		return ""
	}
	return prefix
}

func newMinioPutter(cfg config.BackupConfig) (*minioPutter, error) {
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create upload client: %w", err)
	}
	return &minioPutter{client: client}, nil
}

func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("endpoint is required")
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse endpoint URL: %w", err)
		}
		if parsed.Host == "" {
			return "", false, fmt.Errorf("endpoint host is required")
		}
		if parsed.Scheme == "https" {
			return parsed.Host, true, nil
		}
		return parsed.Host, useSSL, nil
	}
	return raw, useSSL, nil
}

type minioPutter struct {
	client *minio.Client
}

func (m *minioPutter) Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}
