package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/rs/zerolog"
)

// TieredStore combines local disk (source of truth) with S3 (backup).
// Write path: save locally first (never block on S3), then push to S3.
// Read path: local first, S3 fallback with cache-on-read.
type TieredStore struct {
	s3    *S3Store
	local *LocalStore
	log   zerolog.Logger
}

// NewTieredStore creates a tiered local-primary + S3-backup store.
func NewTieredStore(s3 *S3Store, local *LocalStore, log zerolog.Logger) *TieredStore {
	return &TieredStore{
		s3:    s3,
		local: local,
		log:   log.With().Str("component", "tiered-store").Logger(),
	}
}

// Save writes to local disk first (fatal on failure), then S3. An S3
// failure is non-fatal since the local copy is the one transcription
// reads from.
func (s *TieredStore) Save(ctx context.Context, name string, data []byte, ct string) error {
	if err := s.local.Save(ctx, name, data, ct); err != nil {
		return err
	}
	if err := s.s3.Save(ctx, name, data, ct); err != nil {
		s.log.Warn().Err(err).Str("blob", name).Msg("S3 backup write failed")
	}
	return nil
}

func (s *TieredStore) LocalPath(name string) string {
	return s.local.LocalPath(name)
}

func (s *TieredStore) URL(ctx context.Context, name string) (string, error) {
	return s.s3.URL(ctx, name)
}

// Open returns a reader for the blob. Checks local disk first, then
// falls back to S3. On S3 hit, the blob is cached locally for future reads.
func (s *TieredStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if r, err := s.local.Open(ctx, name); err == nil {
		return r, nil
	}
	r, err := s.s3.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return nil, err
	}
	// Best-effort local cache write
	if cacheErr := s.local.Save(ctx, name, data, ""); cacheErr != nil {
		s.log.Warn().Err(cacheErr).Str("blob", name).Msg("failed to cache S3 blob locally")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *TieredStore) Exists(ctx context.Context, name string) bool {
	if s.local.Exists(ctx, name) {
		return true
	}
	return s.s3.Exists(ctx, name)
}

func (s *TieredStore) Type() string { return "tiered" }
