package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps audio blobs as plain files under one directory.
// Names map directly to paths, so a user can inspect and back up their
// recordings with ordinary tools.
type LocalStore struct {
	audioDir string
}

// NewLocalStore creates a local filesystem blob store.
func NewLocalStore(audioDir string) *LocalStore {
	return &LocalStore{audioDir: audioDir}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.audioDir, name)
}

func (s *LocalStore) stat(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// writeAtomic lands data at path via a temp file and rename, so a crash
// mid-write never leaves a truncated blob under the final name.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".blob-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmp.Name(), path)
	}
	if werr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, werr)
	}
	return nil
}

func (s *LocalStore) Save(ctx context.Context, name string, data []byte, contentType string) error {
	return writeAtomic(s.path(name), data)
}

// LocalPath returns the on-disk path for a stored blob, or "" if the
// blob is not present locally.
func (s *LocalStore) LocalPath(name string) string {
	if s.stat(name) {
		return s.path(name)
	}
	return ""
}

// URL is empty for local blobs; callers serve the file directly.
func (s *LocalStore) URL(ctx context.Context, name string) (string, error) {
	return "", nil
}

func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(s.path(name))
}

func (s *LocalStore) Exists(ctx context.Context, name string) bool {
	return s.stat(name)
}

func (s *LocalStore) Type() string { return "local" }

// Dir returns the audio directory path.
func (s *LocalStore) Dir() string { return s.audioDir }
