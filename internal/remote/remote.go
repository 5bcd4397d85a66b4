// Package remote replicates backup artifacts to off-site object storage.
// Replication is best-effort: the local backup is authoritative and a failed
// upload never fails the backup itself.
package remote

import (
	"context"
	"fmt"
	"io"
)

// Backend stores and retrieves backup artifacts by key.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

// Config selects and configures the replication backend.
type Config struct {
	// Type is the backend type: "" (disabled), "s3" or "gcs".
	Type string    `koanf:"type"`
	S3   S3Config  `koanf:"s3"`
	GCS  GCSConfig `koanf:"gcs"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Prefix    string `koanf:"prefix"`
}

// GCSConfig configures the GCS backend.
type GCSConfig struct {
	Bucket      string `koanf:"bucket"`
	Credentials string `koanf:"credentials"`
	Prefix      string `koanf:"prefix"`
}

// NewBackend creates the configured backend. A nil Backend (with nil error)
// means replication is disabled.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Type {
	case "":
		return nil, nil

	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("S3 bucket is required when using S3 replication")
		}
		return newS3Backend(ctx, cfg.S3)

	case "gcs":
		if cfg.GCS.Bucket == "" {
			return nil, fmt.Errorf("GCS bucket is required when using GCS replication")
		}
		return newGCSBackend(ctx, cfg.GCS)

	default:
		return nil, fmt.Errorf("unsupported replication backend: %s", cfg.Type)
	}
}
