// Package ai holds the HTTP clients for the external speech-to-text and
// text-analysis services, and the failure taxonomy shared between them.
package ai

import "fmt"

// NetworkError indicates the remote service could not be reached or
// returned a server-side failure.
type NetworkError struct {
	Service string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s service unreachable: %v", e.Service, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MissingCredentialError indicates no API key is configured or the
// service rejected the configured one. Distinguished from NetworkError
// at the point of origin so callers can guide remediation differently.
type MissingCredentialError struct {
	Service string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no valid %s API key configured", e.Service)
}

// EmptyResultError indicates the remote call succeeded but returned no
// usable content.
type EmptyResultError struct {
	Service string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s service returned an empty result", e.Service)
}

// FileNotFoundError indicates the referenced audio was missing at read time.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("audio file not found: %s", e.Path)
}
