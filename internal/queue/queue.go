// Package queue tracks transcription jobs from creation through terminal
// state, dispatching calls to the external speech-to-text service without
// blocking callers and reconciling results with the conversation store.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/parley/internal/ai"
	"github.com/snarg/parley/internal/metrics"
)

// Status is a transcription job's lifecycle state. Transitions only move
// forward through Pending → Processing → {Completed | Failed}.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// statusRank orders statuses so a job can never regress.
func statusRank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Job is a tracked request to transcribe one conversation's audio.
type Job struct {
	ConversationID int64     `json:"conversation_id"`
	AudioPath      string    `json:"audio_path"`
	Status         Status    `json:"status"`
	Error          string    `json:"error,omitempty"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// gen identifies the lifecycle attempt. Re-enqueueing bumps it so a
	// superseded dispatch goroutine can no longer touch the job.
	gen uint64
}

// Terminal reports whether the job reached a final state.
func (j Job) Terminal() bool { return j.Status == StatusCompleted || j.Status == StatusFailed }

// TranscriptStore is the slice of the persistence collaborator the queue
// needs.
type TranscriptStore interface {
	GetTranscription(ctx context.Context, conversationID int64) (string, bool, error)
	SetTranscription(ctx context.Context, conversationID int64, text string) error
}

// PublishFunc is a callback for signalling downstream consumers (SSE, UI
// refresh) about job events.
type PublishFunc func(eventType string, conversationID int64, payload map[string]any)

const (
	defaultGraceWindow  = 5 * time.Second
	defaultPollInterval = 5 * time.Second
)

// Options configures a transcription queue.
type Options struct {
	Store        TranscriptStore
	Transcriber  ai.Transcriber
	Publish      PublishFunc
	Notify       func(jobs []Job) // receives the full job list after every change
	GraceWindow  time.Duration    // Completed jobs are evicted this long after completion
	PollInterval time.Duration    // consistency poll period for watched conversations
	Log          zerolog.Logger
}

// Queue is the sole owner and mutator of job state. Jobs are keyed by
// conversation id; re-enqueueing overwrites, never duplicates.
//
// Dispatched transcription calls run to completion or failure: there is
// no per-job timeout or cancellation, and no concurrency cap. A bounded
// limiter is a possible extension point.
type Queue struct {
	mu      sync.Mutex
	opts    Options
	items   map[int64]*Job
	order   []int64
	evict   map[int64]*time.Timer
	watches map[int64]context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an empty queue.
func New(opts Options) *Queue {
	if opts.GraceWindow <= 0 {
		opts.GraceWindow = defaultGraceWindow
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		opts:    opts,
		items:   make(map[int64]*Job),
		evict:   make(map[int64]*time.Timer),
		watches: make(map[int64]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue upserts a Pending job for the conversation and dispatches its
// transcription in the background. The call never blocks on the service.
// Enqueueing an id that already has a job starts a fresh lifecycle and
// invalidates any in-flight dispatch for the old one (this is also how a
// user retries a failed job).
func (q *Queue) Enqueue(conversationID int64, audioPath string) {
	now := time.Now()
	q.mu.Lock()
	if t, ok := q.evict[conversationID]; ok {
		t.Stop()
		delete(q.evict, conversationID)
	}
	gen := uint64(1)
	if prev, exists := q.items[conversationID]; exists {
		gen = prev.gen + 1
	} else {
		q.order = append(q.order, conversationID)
	}
	q.items[conversationID] = &Job{
		ConversationID: conversationID,
		AudioPath:      audioPath,
		Status:         StatusPending,
		EnqueuedAt:     now,
		UpdatedAt:      now,
		gen:            gen,
	}
	q.mu.Unlock()
	q.notify()

	q.opts.Log.Info().Int64("conversation_id", conversationID).Str("audio", audioPath).Msg("transcription job enqueued")

	q.wg.Add(1)
	go q.process(conversationID, audioPath, gen)
}

// UpdateItem merges the non-nil patch fields into the existing job.
// Status patches respect the forward-only transition rule; a patch that
// lands the job in Completed schedules its eviction. No-op for unknown
// ids.
func (q *Queue) UpdateItem(conversationID int64, patch Patch) {
	q.mu.Lock()
	job, ok := q.items[conversationID]
	if !ok {
		q.mu.Unlock()
		return
	}
	completed := false
	if patch.Status != nil && statusRank(*patch.Status) > statusRank(job.Status) {
		job.Status = *patch.Status
		completed = job.Status == StatusCompleted
	}
	if patch.Error != nil {
		job.Error = *patch.Error
	}
	if patch.AudioPath != nil {
		job.AudioPath = *patch.AudioPath
	}
	job.UpdatedAt = time.Now()
	gen := job.gen
	q.mu.Unlock()
	q.notify()

	if completed {
		q.scheduleEviction(conversationID, gen)
	}
}

// Patch holds optional job fields for UpdateItem.
type Patch struct {
	Status    *Status
	Error     *string
	AudioPath *string
}

// RemoveItem deletes the job unconditionally.
func (q *Queue) RemoveItem(conversationID int64) {
	q.mu.Lock()
	q.removeLocked(conversationID)
	q.mu.Unlock()
	q.notify()
}

func (q *Queue) removeLocked(conversationID int64) {
	if _, ok := q.items[conversationID]; !ok {
		return
	}
	delete(q.items, conversationID)
	for i, id := range q.order {
		if id == conversationID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	if t, ok := q.evict[conversationID]; ok {
		t.Stop()
		delete(q.evict, conversationID)
	}
}

// Items returns a snapshot of all jobs in insertion order.
func (q *Queue) Items() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.itemsLocked()
}

func (q *Queue) itemsLocked() []Job {
	out := make([]Job, 0, len(q.order))
	for _, id := range q.order {
		if job, ok := q.items[id]; ok {
			out = append(out, *job)
		}
	}
	return out
}

// Item returns the job for a conversation id, if present.
func (q *Queue) Item(conversationID int64) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.items[conversationID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Stop cancels the consistency watches and any pending evictions.
// In-flight service calls are abandoned via context cancellation.
func (q *Queue) Stop() {
	q.cancel()
	q.mu.Lock()
	for id, t := range q.evict {
		t.Stop()
		delete(q.evict, id)
	}
	for id, cancel := range q.watches {
		cancel()
		delete(q.watches, id)
	}
	q.mu.Unlock()
	q.wg.Wait()
	q.opts.Log.Info().Msg("transcription queue stopped")
}

// notify hands the current job list to the configured observer. Called
// without the queue lock held.
func (q *Queue) notify() {
	if q.opts.Notify == nil {
		return
	}
	q.mu.Lock()
	jobs := q.itemsLocked()
	q.mu.Unlock()
	q.opts.Notify(jobs)
}

// process drives one lifecycle attempt from Pending to a terminal state.
// Every mutation is guarded by gen so a superseded attempt cannot touch
// the job that replaced it.
func (q *Queue) process(conversationID int64, audioPath string, gen uint64) {
	defer q.wg.Done()
	log := q.opts.Log.With().Int64("conversation_id", conversationID).Logger()

	q.transition(conversationID, gen, StatusProcessing, "")

	text, err := q.opts.Transcriber.Transcribe(q.ctx, audioPath)
	if err != nil {
		if q.transition(conversationID, gen, StatusFailed, failureMessage(err)) {
			metrics.JobsFailedTotal.Inc()
			log.Warn().Err(err).Msg("transcription failed")
		}
		return
	}

	// A newer attempt owns the job now; its result will land instead.
	if !q.currentAttempt(conversationID, gen) {
		log.Debug().Msg("discarding superseded transcription result")
		return
	}

	if err := q.opts.Store.SetTranscription(q.ctx, conversationID, text); err != nil {
		if q.transition(conversationID, gen, StatusFailed, "saving the transcript failed, try again") {
			metrics.JobsFailedTotal.Inc()
			log.Warn().Err(err).Msg("storing transcript failed")
		}
		return
	}

	if !q.transition(conversationID, gen, StatusCompleted, "") {
		return
	}
	metrics.JobsCompletedTotal.Inc()
	log.Info().Int("chars", len(text)).Msg("transcription complete")

	if q.opts.Publish != nil {
		q.opts.Publish("transcription", conversationID, map[string]any{
			"conversation_id": conversationID,
			"status":          string(StatusCompleted),
		})
	}

	q.scheduleEviction(conversationID, gen)
}

// currentAttempt reports whether gen is still the job's live lifecycle.
func (q *Queue) currentAttempt(conversationID int64, gen uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.items[conversationID]
	return ok && job.gen == gen
}

// transition applies a forward-only status change for one attempt.
// Returns false if the attempt was superseded, the job is gone, or the
// change would not move the status forward.
func (q *Queue) transition(conversationID int64, gen uint64, status Status, errMsg string) bool {
	q.mu.Lock()
	job, ok := q.items[conversationID]
	if !ok || job.gen != gen || statusRank(status) <= statusRank(job.Status) {
		q.mu.Unlock()
		return false
	}
	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now()
	q.mu.Unlock()
	q.notify()
	return true
}

// scheduleEviction removes a Completed job after the grace window so the
// UI can show a completion acknowledgment first. Failed jobs are never
// auto-evicted.
func (q *Queue) scheduleEviction(conversationID int64, gen uint64) {
	q.mu.Lock()
	job, ok := q.items[conversationID]
	if !ok || job.gen != gen || job.Status != StatusCompleted {
		q.mu.Unlock()
		return
	}
	q.evict[conversationID] = time.AfterFunc(q.opts.GraceWindow, func() {
		q.mu.Lock()
		job, ok := q.items[conversationID]
		evicted := ok && job.gen == gen && job.Status == StatusCompleted
		if evicted {
			q.removeLocked(conversationID)
		}
		q.mu.Unlock()
		if evicted {
			q.notify()
		}
	})
	q.mu.Unlock()
}

// failureMessage turns a service error into the human-readable message
// stored on the job. Credential problems get remediation wording that
// differs from transient network failures.
func failureMessage(err error) string {
	var (
		missing  *ai.MissingCredentialError
		network  *ai.NetworkError
		empty    *ai.EmptyResultError
		notFound *ai.FileNotFoundError
	)
	switch {
	case errors.As(err, &missing):
		return "no transcription API key configured, add one in settings"
	case errors.As(err, &empty):
		return "the service returned no text, the recording may be silent"
	case errors.As(err, &notFound):
		return "the audio file could not be found on disk"
	case errors.As(err, &network):
		return "the transcription service could not be reached, try again"
	default:
		return err.Error()
	}
}
