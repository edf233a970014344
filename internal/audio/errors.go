package audio

import "fmt"

// DeviceAccessError indicates the audio input resource could not be
// acquired (permission denied, missing device, busy).
type DeviceAccessError struct {
	Reason string
	Err    error
}

func (e *DeviceAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio device unavailable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("audio device unavailable: %s", e.Reason)
}

func (e *DeviceAccessError) Unwrap() error { return e.Err }

// EncodingError indicates chunk assembly or format encoding failed.
type EncodingError struct {
	Op  string
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("audio encoding failed (%s): %v", e.Op, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }
