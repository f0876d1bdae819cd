package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPStore uploads blobs to an external object-storage endpoint with a
// simple POST contract: request body is the blob, response body is the
// public URL of the stored object.
type HTTPStore struct {
	Endpoint string
	Token    string // bearer token, optional
	Client   *http.Client
}

// NewHTTPStore builds an HTTPStore with a bounded per-request timeout.
func NewHTTPStore(endpoint, token string, timeout time.Duration) (*HTTPStore, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("blobstore: endpoint is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPStore{
		Endpoint: endpoint,
		Token:    token,
		Client:   &http.Client{Timeout: timeout},
	}, nil
}

// Upload POSTs the blob and returns the URL from the response body.
func (s *HTTPStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("blobstore: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("blobstore: upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("blobstore: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("blobstore: upload returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	url := strings.TrimSpace(string(body))
	if url == "" {
		return "", fmt.Errorf("blobstore: upload returned empty reference")
	}
	return url, nil
}
