package playback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Source supplies the bytes of a playable resource.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Name() string
}

// BlobSource plays back an in-memory audio blob.
type BlobSource struct {
	ResourceName string
	Data         []byte
}

func (s *BlobSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if len(s.Data) == 0 {
		return nil, fmt.Errorf("empty blob")
	}
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}

func (s *BlobSource) Name() string {
	if s.ResourceName != "" {
		return s.ResourceName
	}
	return "blob"
}

// URLSource fetches a playable resource over HTTP.
type URLSource struct {
	URL    string
	Client *http.Client
}

func (s *URLSource) Open(ctx context.Context) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", s.URL, resp.StatusCode)
	}
	return resp.Body, nil
}

func (s *URLSource) Name() string { return s.URL }

func readAll(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()
	return io.ReadAll(rc)
}
