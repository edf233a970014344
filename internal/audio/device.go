package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// Constraints describe how an audio input stream should be opened.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	Channels         int
	SampleRate       int
}

// SpeechConstraints is the capture configuration used for spoken audio:
// mono 44100 Hz with all voice conditioning enabled.
func SpeechConstraints() Constraints {
	return Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		Channels:         1,
		SampleRate:       44100,
	}
}

// Source delivers PCM frames from an acquired input stream. Read blocks
// until a frame is available and returns an error once the stream ends or
// the context is cancelled.
type Source interface {
	Read(ctx context.Context) ([]float32, error)
	Close() error
}

// Device acquires exclusive audio input sources. Acquire returns a
// *DeviceAccessError when the input cannot be opened.
type Device interface {
	Acquire(ctx context.Context, c Constraints) (Source, error)
}

// PCMDevice reads capture input from a file or FIFO carrying signed
// 16-bit little-endian mono PCM, e.g. fed by arecord into a named pipe.
type PCMDevice struct {
	Path string

	// FrameSamples is the number of samples per Read. Zero means 1/10th
	// of a second at the requested sample rate.
	FrameSamples int
}

func (d *PCMDevice) Acquire(ctx context.Context, c Constraints) (Source, error) {
	if d.Path == "" {
		return nil, &DeviceAccessError{Reason: "no capture source configured"}
	}
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, &DeviceAccessError{Reason: fmt.Sprintf("open %s", d.Path), Err: err}
	}
	frame := d.FrameSamples
	if frame <= 0 {
		frame = c.SampleRate / 10
	}
	return &pcmSource{f: f, frame: frame}, nil
}

type pcmSource struct {
	f         *os.File
	frame     int
	closeOnce sync.Once
	closeErr  error
}

// Read blocks until a full frame arrives. A stalled writer (an idle FIFO)
// must not wedge the caller, so the blocking read runs aside and the
// source is closed when the context is cancelled first.
func (s *pcmSource) Read(ctx context.Context) ([]float32, error) {
	raw := make([]byte, s.frame*2)

	type readResult struct {
		n   int
		err error
	}
	done := make(chan readResult, 1)
	go func() {
		n, err := io.ReadFull(s.f, raw)
		done <- readResult{n, err}
	}()

	select {
	case <-ctx.Done():
		s.Close() // unblocks the pending read
		return nil, ctx.Err()
	case res := <-done:
		if res.n == 0 && res.err != nil {
			return nil, res.err
		}
		out := make([]float32, res.n/2)
		for i := range out {
			v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
			out[i] = float32(v) / 32768.0
		}
		return out, nil
	}
}

func (s *pcmSource) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.f.Close() })
	return s.closeErr
}
