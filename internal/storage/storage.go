// Package storage provides object storage for account avatar images.
// Two backends are supported: MinIO and Google Cloud Storage, selected
// by configuration.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/idhub/authserver/config"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// New constructs the backend named by cfg.Storage.Backend.
func New(ctx context.Context, cfg config.Config) (ObjectStorage, error) {
	switch cfg.Storage.Backend {
	case "minio":
		return NewMinioBackend(cfg.Storage.Minio)
	case "gcs":
		return NewGCSBackend(ctx, cfg.Storage.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
