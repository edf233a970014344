package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Analyzer generates text from a transcript and a prompt.
type Analyzer interface {
	Analyze(ctx context.Context, transcript, prompt string) (string, error)
}

// ChatClient calls an OpenAI-compatible /v1/chat/completions endpoint
// for transcript analysis. Implements Analyzer.
type ChatClient struct {
	url    string
	model  string
	apiKey string
	client *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewChatClient creates an analysis client.
func NewChatClient(url, model, apiKey string, timeout time.Duration) *ChatClient {
	return &ChatClient{
		url:    url,
		model:  model,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Analyze sends the prompt and transcript to the analysis service and
// returns the generated text. Failure taxonomy matches Transcriber.
func (cc *ChatClient) Analyze(ctx context.Context, transcript, prompt string) (string, error) {
	if cc.apiKey == "" {
		return "", &MissingCredentialError{Service: "analysis"}
	}

	payload, err := json.Marshal(chatRequest{
		Model: cc.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: transcript},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cc.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cc.apiKey)

	resp, err := cc.client.Do(req)
	if err != nil {
		return "", &NetworkError{Service: "analysis", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Service: "analysis", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &MissingCredentialError{Service: "analysis"}
	case resp.StatusCode != http.StatusOK:
		return "", &NetworkError{
			Service: "analysis",
			Err:     fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body)),
		}
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", &EmptyResultError{Service: "analysis"}
	}

	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return "", &EmptyResultError{Service: "analysis"}
	}
	return text, nil
}
