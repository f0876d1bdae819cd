package blobstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUploadFailed wraps the final error once the retry budget is exhausted.
// The failure is recoverable: the caller may offer a manual retry.
var ErrUploadFailed = errors.New("blobstore: upload failed after retries")

// RetryPolicy bounds the retry loop around transient upload failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy matches the app's historical upload behavior: three
// attempts with exponential backoff starting at two seconds.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseBackoff: 2 * time.Second,
	MaxBackoff:  30 * time.Second,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = DefaultRetryPolicy.BaseBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultRetryPolicy.MaxBackoff
	}
	return p
}

// backoff returns the sleep before attempt n (0-based), doubling and capped.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}

// retryStore wraps a Store with bounded retries.
type retryStore struct {
	inner  Store
	policy RetryPolicy
}

// WithRetry wraps store so that Upload retries transient failures with
// exponential backoff, up to the policy's attempt cap. Context cancellation
// aborts immediately and is never converted to ErrUploadFailed.
func WithRetry(store Store, policy RetryPolicy) Store {
	return &retryStore{inner: store, policy: policy.normalized()}
}

func (r *retryStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.policy.backoff(attempt - 1)):
			}
		}
		ref, err := r.inner.Upload(ctx, data, contentType)
		if err == nil {
			return ref, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: %d attempts: %v", ErrUploadFailed, r.policy.MaxAttempts, lastErr)
}
