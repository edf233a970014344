// Package playback plays back a single loaded audio resource with
// transport controls and periodic timing telemetry.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/parley/internal/audio"
)

// PlaybackState is one telemetry snapshot of the loaded resource.
type PlaybackState struct {
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"` // 0 while unknown
}

// UpdateFunc receives telemetry snapshots.
type UpdateFunc func(PlaybackState)

const (
	defaultTickInterval = 100 * time.Millisecond
	skipInterval        = 5.0 // seconds moved by Rewind/Forward
)

// Output is the platform audio output gate. Begin is called when
// playback starts and may refuse until a user gesture has occurred.
// A nil Output always allows playback.
type Output interface {
	Begin() error
}

// Options configures a playback engine.
type Options struct {
	Output       Output
	TickInterval time.Duration
	Log          zerolog.Logger
}

// Engine owns a single decodable audio resource. Loading a new resource
// disposes the previous one before acquiring the next.
type Engine struct {
	mu   sync.Mutex
	opts Options

	name     string
	data     []byte
	duration float64 // seconds, 0 = unknown
	pos      float64
	playing  bool
	playedAt time.Time
	onUpdate UpdateFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an empty playback engine.
func NewEngine(opts Options) *Engine {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	return &Engine{opts: opts}
}

// Load reads the resource, determines its duration when possible, and
// begins telemetry polling. Any previously loaded resource is released
// first. Unreadable or corrupt resources fail with *DecodeError; a
// non-WAV resource loads with unknown duration (0) until
// SetDurationEstimate supplies one.
func (e *Engine) Load(ctx context.Context, src Source, onUpdate UpdateFunc) error {
	e.disposeTicker()

	rc, err := src.Open(ctx)
	if err != nil {
		return &DecodeError{Name: src.Name(), Err: err}
	}
	data, err := readAll(rc)
	if err != nil {
		return &DecodeError{Name: src.Name(), Err: err}
	}

	duration := 0.0
	if audio.IsWAV(data) {
		d, err := audio.WAVDuration(data)
		if err != nil {
			return &DecodeError{Name: src.Name(), Err: err}
		}
		duration = d
	}

	e.mu.Lock()
	e.name = src.Name()
	e.data = data
	e.duration = duration
	e.pos = 0
	e.playing = false
	e.onUpdate = onUpdate

	tickCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg.Add(1)
	go e.telemetryLoop(tickCtx)
	e.mu.Unlock()

	e.opts.Log.Debug().Str("resource", src.Name()).Float64("duration", duration).Msg("playback resource loaded")
	return nil
}

// SetDurationEstimate supplies an out-of-band duration (e.g. derived
// from resource size) when native metadata did not yield one. Ignored
// once a duration is known.
func (e *Engine) SetDurationEstimate(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.duration > 0 || seconds <= 0 {
		return
	}
	e.duration = seconds
	e.pos = e.clampLocked(e.pos)
}

// Play starts or resumes playback. Fails with *BlockedError when the
// platform output refuses (user gesture required), which callers must
// treat differently from a decode failure.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.data == nil {
		return fmt.Errorf("no resource loaded")
	}
	if e.playing {
		return nil
	}
	if e.opts.Output != nil {
		if err := e.opts.Output.Begin(); err != nil {
			return &BlockedError{Err: err}
		}
	}
	if e.duration > 0 && e.pos >= e.duration {
		e.pos = 0
	}
	e.playing = true
	e.playedAt = time.Now()
	return nil
}

// Pause suspends playback, keeping the current position.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncLocked(time.Now())
	e.playing = false
}

// Stop suspends playback and resets the position to 0.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
	e.pos = 0
}

// Seek moves to the given time, clamped into [0, duration]. When the
// duration is unknown only the lower bound applies.
func (e *Engine) Seek(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncLocked(time.Now())
	e.pos = e.clampLocked(seconds)
	if e.playing {
		e.playedAt = time.Now()
	}
}

// Rewind skips back 5 seconds, clamped at 0.
func (e *Engine) Rewind() { e.skip(-skipInterval) }

// Forward skips ahead 5 seconds, clamped at the duration.
func (e *Engine) Forward() { e.skip(skipInterval) }

func (e *Engine) skip(delta float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncLocked(time.Now())
	e.pos = e.clampLocked(e.pos + delta)
	if e.playing {
		e.playedAt = time.Now()
	}
}

// State returns the current playback snapshot.
func (e *Engine) State() PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked(time.Now())
}

// Close releases the loaded resource and stops telemetry.
func (e *Engine) Close() {
	e.disposeTicker()
	e.mu.Lock()
	e.data = nil
	e.name = ""
	e.duration = 0
	e.pos = 0
	e.playing = false
	e.onUpdate = nil
	e.mu.Unlock()
}

// disposeTicker stops the telemetry goroutine if one is running.
func (e *Engine) disposeTicker() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
		e.wg.Wait()
	}
}

func (e *Engine) telemetryLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			st := e.stateLocked(time.Now())
			fn := e.onUpdate
			e.mu.Unlock()
			if fn != nil {
				fn(st)
			}
		}
	}
}

// syncLocked folds elapsed play time into pos and handles end-of-resource.
func (e *Engine) syncLocked(now time.Time) {
	if !e.playing {
		return
	}
	e.pos += now.Sub(e.playedAt).Seconds()
	e.playedAt = now
	if e.duration > 0 && e.pos >= e.duration {
		e.pos = e.duration
		e.playing = false
	}
}

func (e *Engine) stateLocked(now time.Time) PlaybackState {
	e.syncLocked(now)
	return PlaybackState{
		IsPlaying:   e.playing,
		CurrentTime: e.pos,
		Duration:    e.duration,
	}
}

func (e *Engine) clampLocked(t float64) float64 {
	if t < 0 {
		return 0
	}
	if e.duration > 0 && t > e.duration {
		return e.duration
	}
	return t
}
