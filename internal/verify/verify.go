// Package verify gates submissions on the external face-verification
// collaborator. The engine only consumes a boolean capability check; the
// recognition itself lives elsewhere.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Result is the outcome of an identity check.
type Result struct {
	Ok     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Verifier answers "is this user who they claim to be right now".
type Verifier interface {
	Verify(ctx context.Context, userID string) (Result, error)
}

// AllowAll passes every check. Used when verification is disabled.
type AllowAll struct{}

func (AllowAll) Verify(ctx context.Context, userID string) (Result, error) {
	return Result{Ok: true}, nil
}

// HTTPVerifier calls the verification service: POST {"user_id": ...} and
// expects a Result JSON body back.
type HTTPVerifier struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

// NewHTTPVerifier builds a verifier with a bounded request timeout.
func NewHTTPVerifier(endpoint, token string, timeout time.Duration) (*HTTPVerifier, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("verify: endpoint is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPVerifier{
		Endpoint: endpoint,
		Token:    token,
		Client:   &http.Client{Timeout: timeout},
	}, nil
}

func (v *HTTPVerifier) Verify(ctx context.Context, userID string) (Result, error) {
	body, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return Result{}, fmt.Errorf("verify: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("verify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.Token != "" {
		req.Header.Set("Authorization", "Bearer "+v.Token)
	}

	resp, err := v.Client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("verify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("verify: service returned %d", resp.StatusCode)
	}
	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("verify: decode response: %w", err)
	}
	return res, nil
}
