// Package importer watches a drop directory for audio files recorded
// elsewhere and feeds them into the conversation store and transcription
// queue. This is the ingest path for recordings that did not go through
// the capture engine.
package importer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/snarg/parley/internal/audio"
	"github.com/snarg/parley/internal/database"
	"github.com/snarg/parley/internal/metrics"
	"github.com/snarg/parley/internal/storage"
)

// Conversations is the slice of the database the importer needs.
type Conversations interface {
	CreateConversation(ctx context.Context, nc database.NewConversation) (int64, error)
}

// Jobs is the queue surface the importer dispatches to.
type Jobs interface {
	Enqueue(conversationID int64, audioPath string)
}

// Watcher monitors an import directory for new audio files. Each file is
// copied into blob storage, registered as a conversation, and queued for
// transcription. The source file is removed after a successful import so
// the directory acts as a drop box.
type Watcher struct {
	importDir string
	store     storage.BlobStore
	db        Conversations
	jobs      Jobs
	log       zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	filesImported atomic.Int64
	filesSkipped  atomic.Int64
}

func New(importDir string, store storage.BlobStore, db Conversations, jobs Jobs, log zerolog.Logger) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		importDir:      importDir,
		store:          store,
		db:             db,
		jobs:           jobs,
		log:            log.With().Str("component", "importer").Logger(),
		ctx:            ctx,
		cancel:         cancel,
		debounceTimers: make(map[string]*time.Timer),
	}
}

// Start initializes the fsnotify watcher and imports any files already
// sitting in the directory.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.importDir, 0o755); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw

	if err := fw.Add(w.importDir); err != nil {
		fw.Close()
		return err
	}

	w.log.Info().Str("import_dir", w.importDir).Msg("import watcher initialized")

	w.wg.Add(1)
	go w.watchLoop()

	// Backfill files dropped while we were not running.
	w.wg.Add(1)
	go w.backfill()

	return nil
}

// Stop closes the fsnotify watcher and waits for in-flight imports.
func (w *Watcher) Stop() {
	w.cancel()
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.debounceMu.Lock()
	for path, t := range w.debounceTimers {
		t.Stop()
		delete(w.debounceTimers, path)
	}
	w.debounceMu.Unlock()
	w.wg.Wait()
	w.log.Info().
		Int64("files_imported", w.filesImported.Load()).
		Int64("files_skipped", w.filesSkipped.Load()).
		Msg("import watcher stopped")
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !shouldImport(event.Name) {
				continue
			}
			w.scheduleImport(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleImport debounces by 500ms so a file still being written is
// only read after the writes settle.
func (w *Watcher) scheduleImport(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(500 * time.Millisecond)
		return
	}

	w.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		if err := w.importFile(path); err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("import failed")
		}
	})
}

func (w *Watcher) backfill() {
	defer w.wg.Done()
	_ = filepath.WalkDir(w.importDir, func(path string, d fs.DirEntry, err error) error {
		if w.ctx.Err() != nil {
			return w.ctx.Err()
		}
		if err != nil || d.IsDir() || !shouldImport(path) {
			return nil
		}
		if err := w.importFile(path); err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("backfill import failed")
		}
		return nil
	})
}

// importFile moves one audio file into blob storage, creates its
// conversation row, and queues it for transcription.
func (w *Watcher) importFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		w.filesSkipped.Add(1)
		w.log.Debug().Str("path", path).Msg("skipping empty file")
		return nil
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	name := audio.BlobName(ext)
	if err := w.store.Save(w.ctx, name, data, audio.ContentTypeFor(name)); err != nil {
		return err
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id, err := w.db.CreateConversation(w.ctx, database.NewConversation{
		StudentName:      stem,
		ConversationType: "import",
		AudioPath:        name,
	})
	if err != nil {
		return err
	}

	w.jobs.Enqueue(id, w.store.LocalPath(name))
	metrics.ImportsTotal.Inc()
	w.filesImported.Add(1)

	// The drop directory is not the archive; the blob store is.
	if err := os.Remove(path); err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("could not remove imported file")
	}

	w.log.Info().Int64("conversation_id", id).Str("blob", name).Str("source", path).Msg("audio file imported")
	return nil
}

// shouldImport reports whether the path looks like an audio file we accept.
func shouldImport(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".mp3", ".m4a":
		return true
	default:
		return false
	}
}
