package playback

import "fmt"

// BlockedError indicates the platform requires a user gesture before
// audio can start. Distinct from DecodeError so the UI can prompt for a
// gesture instead of reporting a corrupt file.
type BlockedError struct {
	Err error
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("playback blocked by platform policy: %v", e.Err)
}

func (e *BlockedError) Unwrap() error { return e.Err }

// DecodeError indicates the resource is unreadable or corrupt.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
