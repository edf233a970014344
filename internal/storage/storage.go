// Package storage persists recorded and imported audio blobs. Keys are
// flat blob names of the form {epoch-millis}-{uuid}.{ext}.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/parley/internal/config"
)

// BlobStore abstracts audio blob storage backends.
type BlobStore interface {
	// Save stores a blob under its name.
	Save(ctx context.Context, name string, data []byte, contentType string) error

	// LocalPath returns the local filesystem path if the blob exists on
	// disk. Returns "" if not available locally.
	LocalPath(name string) string

	// URL returns a presigned URL for the blob.
	// Returns "" for local-only backends.
	URL(ctx context.Context, name string) (string, error)

	// Open returns a reader for the blob.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Exists checks if a blob exists in any backend.
	Exists(ctx context.Context, name string) bool

	// Type returns "local", "s3", or "tiered".
	Type() string
}

// New creates a BlobStore based on config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, audioDir string, log zerolog.Logger) (BlobStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(audioDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	if !cfg.LocalCache {
		return s3store, nil
	}

	return NewTieredStore(s3store, NewLocalStore(audioDir), log), nil
}
