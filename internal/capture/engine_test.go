package capture

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/parley/internal/audio"
)

// fakeDevice produces paced silence frames, simulating a live input.
type fakeDevice struct {
	frameDur time.Duration
	fail     bool
	acquired int
}

func (d *fakeDevice) Acquire(ctx context.Context, c audio.Constraints) (audio.Source, error) {
	if d.fail {
		return nil, &audio.DeviceAccessError{Reason: "permission denied"}
	}
	d.acquired++
	samples := int(float64(c.SampleRate) * d.frameDur.Seconds())
	return &fakeSource{frameDur: d.frameDur, samples: samples}, nil
}

type fakeSource struct {
	frameDur time.Duration
	samples  int
	closed   bool
	mu       sync.Mutex
}

func (s *fakeSource) Read(ctx context.Context) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.frameDur):
		return make([]float32, s.samples), nil
	}
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func newTestEngine(dev audio.Device) *Engine {
	return NewEngine(Options{
		Device:        dev,
		TickInterval:  10 * time.Millisecond,
		ChunkInterval: 50 * time.Millisecond,
		Log:           zerolog.Nop(),
	})
}

// collector gathers telemetry snapshots thread-safely.
type collector struct {
	mu     sync.Mutex
	states []RecordingState
}

func (c *collector) update(st RecordingState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, st)
}

func (c *collector) all() []RecordingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RecordingState, len(c.states))
	copy(out, c.states)
	return out
}

func TestEngine_RecordStop(t *testing.T) {
	e := newTestEngine(&fakeDevice{frameDur: 10 * time.Millisecond})
	var c collector

	if err := e.Start(context.Background(), c.update); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	e.Stop()

	blob := e.AudioBlob()
	if blob == nil {
		t.Fatal("AudioBlob is nil after a 300ms capture")
	}

	states := c.all()
	if len(states) == 0 {
		t.Fatal("no telemetry delivered")
	}

	final := states[len(states)-1]
	if final.IsRecording || final.IsPaused {
		t.Errorf("final state = %+v, want idle", final)
	}
	if final.AudioBlob == nil {
		t.Error("final telemetry is missing the complete blob")
	}
	if math.Abs(final.Duration-0.3) > 0.1 {
		t.Errorf("final duration = %f, want ~0.3", final.Duration)
	}
}

func TestEngine_TelemetryDurationMonotonic(t *testing.T) {
	e := newTestEngine(&fakeDevice{frameDur: 10 * time.Millisecond})
	var c collector

	if err := e.Start(context.Background(), c.update); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	e.Stop()

	prev := -1.0
	for i, st := range c.all() {
		if st.Duration < prev {
			t.Fatalf("telemetry %d duration %f regressed below %f", i, st.Duration, prev)
		}
		prev = st.Duration
	}
}

func TestEngine_PauseExcludedFromDuration(t *testing.T) {
	e := newTestEngine(&fakeDevice{frameDur: 10 * time.Millisecond})
	var c collector

	if err := e.Start(context.Background(), c.update); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	e.Pause()
	time.Sleep(200 * time.Millisecond)
	e.Resume()
	time.Sleep(100 * time.Millisecond)
	e.Stop()

	states := c.all()
	final := states[len(states)-1]
	// ~200ms recorded, the 200ms pause must not count.
	if math.Abs(final.Duration-0.2) > 0.1 {
		t.Errorf("final duration = %f, want ~0.2 (pause excluded)", final.Duration)
	}

	// While paused, telemetry must report the paused flag.
	sawPaused := false
	for _, st := range states {
		if st.IsPaused && !st.IsRecording {
			sawPaused = true
		}
	}
	if !sawPaused {
		t.Error("no telemetry snapshot reported the paused state")
	}
}

func TestEngine_PauseResumeGuards(t *testing.T) {
	e := newTestEngine(&fakeDevice{frameDur: 10 * time.Millisecond})

	// All no-ops while idle.
	e.Pause()
	e.Resume()
	e.Stop()
	if e.AudioBlob() != nil {
		t.Error("AudioBlob should be nil before any capture")
	}

	if err := e.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Resume() // no-op while recording
	e.Pause()
	e.Pause() // no-op while already paused
	e.Stop()
}

func TestEngine_DeviceAccessError(t *testing.T) {
	e := newTestEngine(&fakeDevice{fail: true})

	err := e.Start(context.Background(), nil)
	if err == nil {
		t.Fatal("Start should fail when the device is unavailable")
	}
	var devErr *audio.DeviceAccessError
	if !errors.As(err, &devErr) {
		t.Errorf("error type = %T, want *audio.DeviceAccessError", err)
	}

	// Engine must be clean and reusable.
	ok := &fakeDevice{frameDur: 10 * time.Millisecond}
	e2 := newTestEngine(ok)
	if err := e2.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
	e2.Stop()
}

func TestEngine_StartWhileRecordingResets(t *testing.T) {
	dev := &fakeDevice{frameDur: 10 * time.Millisecond}
	e := newTestEngine(dev)

	if err := e.Start(context.Background(), nil); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if err := e.Start(context.Background(), nil); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if dev.acquired != 2 {
		t.Errorf("acquired = %d, want 2 (prior capture reset, new source acquired)", dev.acquired)
	}
	e.Stop()
}

func TestEngine_StopReleasesSource(t *testing.T) {
	dev := &fakeDevice{frameDur: 10 * time.Millisecond}
	e := newTestEngine(dev)

	if err := e.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	// Grab the source before Stop drops it.
	e.mu.Lock()
	src := e.source.(*fakeSource)
	e.mu.Unlock()

	e.Stop()

	src.mu.Lock()
	closed := src.closed
	src.mu.Unlock()
	if !closed {
		t.Error("input source was not closed on Stop")
	}
}

// stalledSource blocks in Read until the source is closed, like a FIFO
// whose writer has gone quiet.
type stalledSource struct {
	unblock chan struct{}
	once    sync.Once
}

func (s *stalledSource) Read(ctx context.Context) ([]float32, error) {
	<-s.unblock
	return nil, errors.New("source closed")
}

func (s *stalledSource) Close() error {
	s.once.Do(func() { close(s.unblock) })
	return nil
}

type stalledDevice struct{}

func (d *stalledDevice) Acquire(ctx context.Context, c audio.Constraints) (audio.Source, error) {
	return &stalledSource{unblock: make(chan struct{})}, nil
}

func TestEngine_StopReturnsWhileSourceStalled(t *testing.T) {
	e := newTestEngine(&stalledDevice{})

	if err := e.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while the input source was stalled")
	}
}
