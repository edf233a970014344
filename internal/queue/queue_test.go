package queue

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/parley/internal/ai"
)

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	delay time.Duration
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeTranscriber) Name() string  { return "fake" }
func (f *fakeTranscriber) Model() string { return "fake-1" }

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu          sync.Mutex
	transcripts map[int64]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{transcripts: make(map[int64]string)}
}

func (f *fakeStore) GetTranscription(ctx context.Context, id int64) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.transcripts[id]
	return text, ok, nil
}

func (f *fakeStore) SetTranscription(ctx context.Context, id int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts[id] = text
	return nil
}

func (f *fakeStore) get(id int64) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.transcripts[id]
	return text, ok
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestEnqueueSuccessPath(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranscriber{text: "hello world"}
	var published []string
	var pubMu sync.Mutex

	q := New(Options{
		Store:       store,
		Transcriber: tr,
		Publish: func(eventType string, id int64, payload map[string]any) {
			pubMu.Lock()
			published = append(published, eventType)
			pubMu.Unlock()
		},
		GraceWindow: 50 * time.Millisecond,
		Log:         zerolog.Nop(),
	})
	defer q.Stop()

	q.Enqueue(7, "/audio/7.wav")

	if !waitFor(t, 2*time.Second, func() bool {
		job, ok := q.Item(7)
		return ok && job.Status == StatusCompleted
	}) {
		job, _ := q.Item(7)
		t.Fatalf("job never completed, status=%q error=%q", job.Status, job.Error)
	}

	if text, ok := store.get(7); !ok || text != "hello world" {
		t.Errorf("transcript not stored, got %q ok=%v", text, ok)
	}

	// Completed jobs vanish after the grace window.
	if !waitFor(t, 2*time.Second, func() bool {
		_, ok := q.Item(7)
		return !ok
	}) {
		t.Error("completed job was not evicted after grace window")
	}

	pubMu.Lock()
	defer pubMu.Unlock()
	if len(published) == 0 {
		t.Error("completion was not published")
	}
}

func TestFailedJobStaysUntilDismissed(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranscriber{err: &ai.NetworkError{Service: "whisper", Err: context.DeadlineExceeded}}

	q := New(Options{
		Store:       store,
		Transcriber: tr,
		GraceWindow: 30 * time.Millisecond,
		Log:         zerolog.Nop(),
	})
	defer q.Stop()

	q.Enqueue(3, "/audio/3.wav")

	if !waitFor(t, 2*time.Second, func() bool {
		job, ok := q.Item(3)
		return ok && job.Status == StatusFailed
	}) {
		t.Fatal("job never failed")
	}

	job, _ := q.Item(3)
	if job.Error == "" {
		t.Error("failed job has no error message")
	}
	if !strings.Contains(job.Error, "could not be reached") {
		t.Errorf("network failure message not user-facing: %q", job.Error)
	}

	// Well past the grace window the failed job must still be present.
	time.Sleep(100 * time.Millisecond)
	if _, ok := q.Item(3); !ok {
		t.Error("failed job was evicted; it must stay until dismissed")
	}

	q.RemoveItem(3)
	if _, ok := q.Item(3); ok {
		t.Error("RemoveItem left the job in place")
	}
}

func TestFailureMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"missing_credential", &ai.MissingCredentialError{Service: "whisper"}, "API key"},
		{"empty_result", &ai.EmptyResultError{Service: "whisper"}, "no text"},
		{"file_not_found", &ai.FileNotFoundError{Path: "/x.wav"}, "could not be found"},
		{"network", &ai.NetworkError{Service: "whisper", Err: context.DeadlineExceeded}, "could not be reached"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := failureMessage(tc.err)
			if !strings.Contains(got, tc.want) {
				t.Errorf("failureMessage(%T) = %q, want substring %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestEnqueueUpsertsByConversation(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranscriber{text: "take two", delay: 50 * time.Millisecond}

	q := New(Options{
		Store:       store,
		Transcriber: tr,
		GraceWindow: time.Minute,
		Log:         zerolog.Nop(),
	})
	defer q.Stop()

	q.Enqueue(5, "/audio/a.wav")
	q.Enqueue(5, "/audio/b.wav")

	items := q.Items()
	if len(items) != 1 {
		t.Fatalf("expected one job after re-enqueue, got %d", len(items))
	}
	if items[0].AudioPath != "/audio/b.wav" {
		t.Errorf("re-enqueue did not overwrite audio path, got %q", items[0].AudioPath)
	}

	if !waitFor(t, 2*time.Second, func() bool {
		job, ok := q.Item(5)
		return ok && job.Terminal()
	}) {
		t.Fatal("job never reached a terminal state")
	}
}

func TestStatusNeverRegresses(t *testing.T) {
	store := newFakeStore()
	q := New(Options{
		Store:       store,
		Transcriber: &fakeTranscriber{delay: time.Minute},
		Log:         zerolog.Nop(),
	})
	defer q.Stop()

	q.Enqueue(9, "/audio/9.wav")

	completed := StatusCompleted
	q.UpdateItem(9, Patch{Status: &completed})

	pending := StatusPending
	q.UpdateItem(9, Patch{Status: &pending})

	job, ok := q.Item(9)
	if !ok {
		t.Fatal("job missing")
	}
	if job.Status != StatusCompleted {
		t.Errorf("status regressed to %q", job.Status)
	}
}

func TestUpdateItemCompletedSchedulesEviction(t *testing.T) {
	store := newFakeStore()
	q := New(Options{
		Store:       store,
		Transcriber: &fakeTranscriber{delay: time.Minute},
		GraceWindow: 30 * time.Millisecond,
		Log:         zerolog.Nop(),
	})
	defer q.Stop()

	q.Enqueue(8, "/audio/8.wav")

	// Mark it done from outside the dispatch path, e.g. a transcript
	// reconciled by a watch.
	completed := StatusCompleted
	q.UpdateItem(8, Patch{Status: &completed})

	if !waitFor(t, 2*time.Second, func() bool {
		_, ok := q.Item(8)
		return !ok
	}) {
		t.Error("externally completed job was not evicted after grace window")
	}
}

// gatedTranscriber lets a test control exactly when each transcription
// call starts and finishes, keyed by audio path.
type gatedTranscriber struct {
	mu     sync.Mutex
	starts chan string
	gates  map[string]chan string
}

func newGatedTranscriber() *gatedTranscriber {
	return &gatedTranscriber{
		starts: make(chan string, 4),
		gates:  make(map[string]chan string),
	}
}

func (g *gatedTranscriber) gate(path string) chan string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[path]
	if !ok {
		ch = make(chan string, 1)
		g.gates[path] = ch
	}
	return ch
}

func (g *gatedTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	g.starts <- audioPath
	select {
	case text := <-g.gate(audioPath):
		return text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gatedTranscriber) Name() string  { return "gated" }
func (g *gatedTranscriber) Model() string { return "gated-1" }

func TestReEnqueueSupersedesInFlightAttempt(t *testing.T) {
	store := newFakeStore()
	tr := newGatedTranscriber()

	q := New(Options{
		Store:       store,
		Transcriber: tr,
		GraceWindow: time.Minute,
		Log:         zerolog.Nop(),
	})
	defer q.Stop()

	q.Enqueue(21, "/audio/first.wav")
	if got := <-tr.starts; got != "/audio/first.wav" {
		t.Fatalf("unexpected first dispatch %q", got)
	}

	// Re-enqueueing while the first call is still in flight starts a
	// fresh lifecycle that the old goroutine must not be able to finish.
	q.Enqueue(21, "/audio/second.wav")
	if got := <-tr.starts; got != "/audio/second.wav" {
		t.Fatalf("unexpected second dispatch %q", got)
	}

	tr.gate("/audio/first.wav") <- "stale text"

	time.Sleep(50 * time.Millisecond)
	job, ok := q.Item(21)
	if !ok {
		t.Fatal("job missing")
	}
	if job.Terminal() {
		t.Fatalf("superseded attempt finished the new lifecycle, status=%q", job.Status)
	}
	if text, ok := store.get(21); ok {
		t.Errorf("superseded attempt stored its transcript: %q", text)
	}

	tr.gate("/audio/second.wav") <- "fresh text"

	if !waitFor(t, 2*time.Second, func() bool {
		job, ok := q.Item(21)
		return ok && job.Status == StatusCompleted
	}) {
		t.Fatal("live attempt never completed")
	}
	if text, _ := store.get(21); text != "fresh text" {
		t.Errorf("stored transcript = %q, want %q", text, "fresh text")
	}
}

func TestNotifyReceivesJobSnapshots(t *testing.T) {
	store := newFakeStore()
	var mu sync.Mutex
	var last []Job

	q := New(Options{
		Store:       store,
		Transcriber: &fakeTranscriber{delay: time.Minute},
		Notify: func(jobs []Job) {
			mu.Lock()
			last = append([]Job(nil), jobs...)
			mu.Unlock()
		},
		Log: zerolog.Nop(),
	})
	defer q.Stop()

	q.Enqueue(2, "/audio/2.wav")

	if !waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 1 && last[0].ConversationID == 2
	}) {
		t.Fatal("enqueue was not reported through the notify hook")
	}

	q.RemoveItem(2)

	if !waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 0
	}) {
		t.Error("removal was not reported through the notify hook")
	}
}

func TestWatchDetectsOutOfBandTranscript(t *testing.T) {
	store := newFakeStore()
	refreshed := make(chan int64, 1)

	q := New(Options{
		Store:       store,
		Transcriber: &fakeTranscriber{},
		Publish: func(eventType string, id int64, payload map[string]any) {
			select {
			case refreshed <- id:
			default:
			}
		},
		PollInterval: 20 * time.Millisecond,
		Log:          zerolog.Nop(),
	})
	defer q.Stop()

	q.Watch(11)

	// Simulate a transcript arriving outside the queue's own lifecycle.
	if err := store.SetTranscription(context.Background(), 11, "external"); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-refreshed:
		if id != 11 {
			t.Errorf("refresh published for %d, want 11", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never noticed the out-of-band transcript")
	}
}

func TestWatchSkipsQueuedConversations(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranscriber{delay: time.Minute}

	q := New(Options{
		Store:        store,
		Transcriber:  tr,
		PollInterval: 10 * time.Millisecond,
		Log:          zerolog.Nop(),
	})
	defer q.Stop()

	q.Enqueue(4, "/audio/4.wav")
	q.Watch(4)

	q.mu.Lock()
	_, watching := q.watches[4]
	q.mu.Unlock()
	if watching {
		t.Error("Watch started a poll for a conversation with a queued job")
	}
}
