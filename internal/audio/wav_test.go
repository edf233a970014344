package audio

import (
	"errors"
	"math"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	samples := make([]int16, 44100) // 1 second of silence
	blob, err := EncodeWAV(samples, 44100)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if !IsWAV(blob) {
		t.Error("encoded blob is not recognized as WAV")
	}
	if len(blob) != 44+len(samples)*2 {
		t.Errorf("blob length = %d, want %d", len(blob), 44+len(samples)*2)
	}

	dur, err := WAVDuration(blob)
	if err != nil {
		t.Fatalf("WAVDuration: %v", err)
	}
	if math.Abs(dur-1.0) > 0.001 {
		t.Errorf("duration = %f, want 1.0", dur)
	}
}

func TestEncodeWAV_Empty(t *testing.T) {
	_, err := EncodeWAV(nil, 44100)
	if err == nil {
		t.Fatal("EncodeWAV with no samples should fail")
	}
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Errorf("error type = %T, want *EncodingError", err)
	}
}

func TestWAVDuration_Truncated(t *testing.T) {
	if _, err := WAVDuration([]byte("RIFFxxxxWAVE")); err == nil {
		t.Error("WAVDuration should fail on truncated data")
	}
}

func TestIsWAV(t *testing.T) {
	if IsWAV([]byte("ID3\x04mp3 frames here")) {
		t.Error("mp3-ish data misdetected as WAV")
	}
	if IsWAV(nil) {
		t.Error("nil misdetected as WAV")
	}
}

func TestEncoder_ChunkAssembly(t *testing.T) {
	e := NewEncoder(8000)

	if e.Blob() != nil {
		t.Error("Blob should be nil before any commit")
	}

	frame := make([]float32, 800) // 100ms at 8kHz
	e.AppendFrame(frame)
	if e.Blob() != nil {
		t.Error("Blob should be nil while samples are only pending")
	}
	if e.PendingSamples() != 800 {
		t.Errorf("PendingSamples = %d, want 800", e.PendingSamples())
	}

	e.Commit()
	if e.Chunks() != 1 {
		t.Errorf("Chunks = %d, want 1", e.Chunks())
	}
	blob := e.Blob()
	if blob == nil {
		t.Fatal("Blob should be non-nil after commit")
	}

	dur, err := WAVDuration(blob)
	if err != nil {
		t.Fatalf("WAVDuration: %v", err)
	}
	if math.Abs(dur-0.1) > 0.001 {
		t.Errorf("duration = %f, want 0.1", dur)
	}

	// Appending and committing more samples extends the blob.
	e.AppendFrame(frame)
	e.Commit()
	dur, _ = WAVDuration(e.Blob())
	if math.Abs(dur-0.2) > 0.001 {
		t.Errorf("duration after second chunk = %f, want 0.2", dur)
	}
}

func TestEncoder_Clipping(t *testing.T) {
	e := NewEncoder(8000)
	e.AppendFrame([]float32{2.0, -2.0})
	e.Commit()
	blob := e.Blob()
	if blob == nil {
		t.Fatal("Blob returned nil")
	}
	// Out-of-range input must clamp, not wrap around.
	hi := int16(blob[44]) | int16(blob[45])<<8
	lo := int16(blob[46]) | int16(blob[47])<<8
	if hi != 32767 {
		t.Errorf("clipped high sample = %d, want 32767", hi)
	}
	if lo != -32767 {
		t.Errorf("clipped low sample = %d, want -32767", lo)
	}
}
