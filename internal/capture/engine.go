// Package capture owns the microphone input stream for a recording
// session. It acquires an exclusive input source, runs captured frames
// through the voice processing chain, assembles an encoded blob from
// fixed-interval chunks, and streams periodic telemetry to an observer.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/parley/internal/audio"
)

// RecordingState is one telemetry snapshot of an active or finished capture.
type RecordingState struct {
	IsRecording bool    `json:"is_recording"`
	IsPaused    bool    `json:"is_paused"`
	Duration    float64 `json:"duration"` // seconds, excludes paused intervals
	AudioBlob   []byte  `json:"-"`        // assembled WAV, nil until a chunk commits
	AudioLevel  float64 `json:"audio_level"`
}

// UpdateFunc receives telemetry snapshots. Called from the engine's
// telemetry goroutine; snapshots for one engine arrive in time order.
type UpdateFunc func(RecordingState)

const (
	defaultTickInterval  = 100 * time.Millisecond
	defaultChunkInterval = time.Second
)

// Options configures a capture engine.
type Options struct {
	Device        audio.Device
	TickInterval  time.Duration // telemetry period, default 100ms
	ChunkInterval time.Duration // encoder chunk period, default 1s
	Log           zerolog.Logger
}

type phase int

const (
	phaseIdle phase = iota
	phaseRecording
	phasePaused
)

// Engine drives one capture session at a time. Starting while a capture
// is active forcibly resets the prior capture first. All acquired
// resources (input source, chain state, timers) are released on every
// exit path.
type Engine struct {
	mu   sync.Mutex
	opts Options

	phase    phase
	source   audio.Source
	chain    *audio.Chain
	enc      *audio.Encoder
	onUpdate UpdateFunc
	blob     []byte

	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an idle capture engine.
func NewEngine(opts Options) *Engine {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = defaultChunkInterval
	}
	return &Engine{opts: opts}
}

// Start acquires the speech-configured input and begins recording.
// ctx governs acquisition only; the session runs until Stop. On failure
// the engine is left clean and idle and the acquisition error is
// returned (a *audio.DeviceAccessError when the device is unavailable).
func (e *Engine) Start(ctx context.Context, onUpdate UpdateFunc) error {
	e.mu.Lock()
	if e.phase != phaseIdle {
		e.mu.Unlock()
		e.Stop()
		e.mu.Lock()
	}

	if e.opts.Device == nil {
		e.phase = phaseIdle
		e.mu.Unlock()
		return &audio.DeviceAccessError{Reason: "no capture source configured"}
	}

	cons := audio.SpeechConstraints()
	src, err := e.opts.Device.Acquire(ctx, cons)
	if err != nil {
		e.phase = phaseIdle
		e.mu.Unlock()
		return err
	}

	e.source = src
	e.chain = audio.NewVoiceChain(cons.SampleRate)
	e.enc = audio.NewEncoder(cons.SampleRate)
	e.onUpdate = onUpdate
	e.blob = nil
	e.startedAt = time.Now()
	e.pausedTotal = 0
	e.phase = phaseRecording

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	chunkSamples := int(float64(cons.SampleRate) * e.opts.ChunkInterval.Seconds())
	e.wg.Add(2)
	go e.readLoop(runCtx, src, chunkSamples)
	go e.telemetryLoop(runCtx)

	e.opts.Log.Debug().Int("sample_rate", cons.SampleRate).Msg("capture started")
	e.mu.Unlock()
	return nil
}

// Pause suspends the processing graph. No-op unless recording.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != phaseRecording {
		return
	}
	e.phase = phasePaused
	e.pausedAt = time.Now()
	e.chain.Reset()
	e.opts.Log.Debug().Msg("capture paused")
}

// Resume restores the graph and re-anchors the duration baseline so
// elapsed time excludes the paused interval. No-op unless paused.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != phasePaused {
		return
	}
	e.pausedTotal += time.Since(e.pausedAt)
	e.phase = phaseRecording
	e.opts.Log.Debug().Msg("capture resumed")
}

// Stop finalizes encoding, emits one last telemetry update with the
// complete blob, and releases the input source and all graph state.
// Valid from Recording or Paused; no-op when idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.phase == phaseIdle {
		e.mu.Unlock()
		return
	}
	if e.phase == phasePaused {
		e.pausedTotal += time.Since(e.pausedAt)
	}
	finalDur := time.Since(e.startedAt) - e.pausedTotal
	cancel := e.cancel
	src := e.source
	e.mu.Unlock()

	cancel()
	// A source stalled in a blocking read would never observe the
	// cancellation; closing it forces the read loop to exit.
	if src != nil {
		src.Close()
	}
	e.wg.Wait()

	e.mu.Lock()
	e.source = nil
	e.enc.Commit() // flush the trailing partial chunk
	e.blob = e.enc.Blob()
	final := RecordingState{
		Duration:   finalDur.Seconds(),
		AudioBlob:  e.blob,
		AudioLevel: e.chain.Level(),
	}
	fn := e.onUpdate
	e.releaseLocked()
	e.mu.Unlock()

	e.opts.Log.Debug().Float64("duration", final.Duration).Int("bytes", len(final.AudioBlob)).Msg("capture stopped")
	if fn != nil {
		fn(final)
	}
}

// AudioBlob returns the currently assembled encoded blob, or nil if no
// chunk has been captured yet.
func (e *Engine) AudioBlob() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enc == nil {
		return nil
	}
	return e.enc.Blob()
}

// releaseLocked drops every held resource and returns the engine to
// idle. The encoder is kept so AudioBlob still serves the final blob.
func (e *Engine) releaseLocked() {
	if e.source != nil {
		e.source.Close()
		e.source = nil
	}
	if e.chain != nil {
		e.chain.Reset()
	}
	e.cancel = nil
	e.onUpdate = nil
	e.phase = phaseIdle
}

func (e *Engine) readLoop(ctx context.Context, src audio.Source, chunkSamples int) {
	defer e.wg.Done()
	for {
		frame, err := src.Read(ctx)
		if err != nil {
			return
		}
		e.mu.Lock()
		// Frames arriving while paused are discarded; the graph is suspended.
		if e.phase == phaseRecording {
			e.chain.Process(frame)
			e.enc.AppendFrame(frame)
			if e.enc.PendingSamples() >= chunkSamples {
				e.enc.Commit()
			}
		}
		e.mu.Unlock()
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
			e.emit()
		}
	}
}

func (e *Engine) emit() {
	e.mu.Lock()
	if e.phase == phaseIdle {
		e.mu.Unlock()
		return
	}
	st := RecordingState{
		IsRecording: e.phase == phaseRecording,
		IsPaused:    e.phase == phasePaused,
		Duration:    e.durationLocked(time.Now()).Seconds(),
		AudioBlob:   e.enc.Blob(),
		AudioLevel:  e.chain.Level(),
	}
	e.blob = st.AudioBlob
	fn := e.onUpdate
	e.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}

func (e *Engine) durationLocked(now time.Time) time.Duration {
	switch e.phase {
	case phaseRecording:
		return now.Sub(e.startedAt) - e.pausedTotal
	case phasePaused:
		return e.pausedAt.Sub(e.startedAt) - e.pausedTotal
	default:
		return 0
	}
}
