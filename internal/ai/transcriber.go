package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Transcriber is the interface for speech-to-text backends.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
	Name() string
	Model() string
}

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions
// endpoint. Implements Transcriber.
type WhisperClient struct {
	url    string
	model  string
	apiKey string
	client *http.Client
}

// whisperResponse is the parsed response from the transcription API.
type whisperResponse struct {
	Text string `json:"text"`
}

// NewWhisperClient creates a transcription client.
func NewWhisperClient(url, model, apiKey string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		url:    url,
		model:  model,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (wc *WhisperClient) Name() string { return "whisper" }

// Model returns the configured model identifier.
func (wc *WhisperClient) Model() string { return wc.model }

// Transcribe uploads the audio file as multipart/form-data and returns
// the transcript text. Failures map onto the package taxonomy so the
// caller can tell a missing key from an unreachable service from a
// transcription that produced nothing.
func (wc *WhisperClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if wc.apiKey == "" {
		return "", &MissingCredentialError{Service: "transcription"}
	}

	f, err := os.Open(audioPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &FileNotFoundError{Path: audioPath}
		}
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy audio data: %w", err)
	}

	if wc.model != "" {
		w.WriteField("model", wc.model)
	}
	w.WriteField("response_format", "json")
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+wc.apiKey)

	resp, err := wc.client.Do(req)
	if err != nil {
		return "", &NetworkError{Service: "transcription", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Service: "transcription", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &MissingCredentialError{Service: "transcription"}
	case resp.StatusCode != http.StatusOK:
		return "", &NetworkError{
			Service: "transcription",
			Err:     fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body)),
		}
	}

	var result whisperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", &EmptyResultError{Service: "transcription"}
	}
	return text, nil
}
