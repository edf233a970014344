package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStoreSaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	data := []byte("RIFF-ish audio bytes")
	if err := store.Save(ctx, "1700000000000-abc.wav", data, "audio/wav"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	r, err := store.Open(ctx, "1700000000000-abc.wav")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if string(got) != string(data) {
		t.Errorf("round trip mismatch: %q", got)
	}

	if !store.Exists(ctx, "1700000000000-abc.wav") {
		t.Error("Exists false for saved blob")
	}
	if store.Exists(ctx, "missing.wav") {
		t.Error("Exists true for missing blob")
	}

	if p := store.LocalPath("1700000000000-abc.wav"); p != filepath.Join(dir, "1700000000000-abc.wav") {
		t.Errorf("LocalPath = %q", p)
	}
	if p := store.LocalPath("missing.wav"); p != "" {
		t.Errorf("LocalPath for missing blob = %q, want empty", p)
	}

	if u, err := store.URL(ctx, "1700000000000-abc.wav"); err != nil || u != "" {
		t.Errorf("local URL = (%q, %v), want empty", u, err)
	}
}

func TestLocalStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)

	if err := store.Save(context.Background(), "a.wav", []byte("x"), "audio/wav"); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly the saved blob, got %d entries", len(entries))
	}
}
