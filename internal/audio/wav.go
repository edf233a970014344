package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
)

// wavHeader is the canonical 44-byte RIFF/WAVE header for PCM data.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// EncodeWAV encodes mono PCM-16 samples into a WAV container.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, &EncodingError{Op: "encode", Err: fmt.Errorf("no samples")}
	}
	if sampleRate <= 0 {
		return nil, &EncodingError{Op: "encode", Err: fmt.Errorf("sample rate %d", sampleRate)}
	}

	const numChannels, bitsPerSample = uint16(1), uint16(16)
	dataSize := uint32(len(samples) * 2)

	h := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, &EncodingError{Op: "header", Err: err}
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, &EncodingError{Op: "data", Err: err}
	}
	return buf.Bytes(), nil
}

// IsWAV reports whether data starts with a RIFF/WAVE signature.
func IsWAV(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WAVE"))
}

// WAVDuration returns the duration in seconds of a PCM WAV blob.
// Returns an error for data that claims to be WAV but cannot be parsed.
func WAVDuration(data []byte) (float64, error) {
	if len(data) < 44 {
		return 0, fmt.Errorf("wav too short: %d bytes", len(data))
	}
	var h wavHeader
	if err := binary.Read(bytes.NewReader(data[:44]), binary.LittleEndian, &h); err != nil {
		return 0, fmt.Errorf("read wav header: %w", err)
	}
	if h.AudioFormat != 1 || h.ByteRate == 0 {
		return 0, fmt.Errorf("unsupported wav format %d", h.AudioFormat)
	}
	dataSize := h.Subchunk2Size
	if max := uint32(len(data) - 44); dataSize > max {
		dataSize = max
	}
	return float64(dataSize) / float64(h.ByteRate), nil
}

// Encoder assembles an encoded WAV blob from fixed-interval chunks of
// captured samples. Frames accumulate in a pending buffer until Commit
// seals them into a chunk; Blob renders the committed chunks.
type Encoder struct {
	mu         sync.Mutex
	sampleRate int
	pending    []int16
	committed  []int16
	chunks     int
}

// NewEncoder creates a WAV chunk encoder for the given sample rate.
func NewEncoder(sampleRate int) *Encoder {
	return &Encoder{sampleRate: sampleRate}
}

// AppendFrame converts a float32 frame to PCM-16 and buffers it.
func (e *Encoder) AppendFrame(frame []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, v := range frame {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		e.pending = append(e.pending, int16(v*32767))
	}
}

// PendingSamples returns the number of samples buffered since the last commit.
func (e *Encoder) PendingSamples() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Commit seals the pending buffer into a chunk. No-op when nothing is pending.
func (e *Encoder) Commit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 {
		return
	}
	e.committed = append(e.committed, e.pending...)
	e.pending = e.pending[:0]
	e.chunks++
}

// Chunks returns the number of committed chunks.
func (e *Encoder) Chunks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chunks
}

// Blob renders the committed chunks as a WAV blob, or nil if no chunk has
// been committed yet.
func (e *Encoder) Blob() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.committed) == 0 {
		return nil
	}
	blob, err := EncodeWAV(e.committed, e.sampleRate)
	if err != nil {
		return nil
	}
	return blob
}
