package notify

import (
	"context"
	"fmt"
	"sync"
)

// MockNotifier implements Notifier for testing. It records sent alerts and
// can be configured to fail.
type MockNotifier struct {
	mu     sync.Mutex
	sent   []Alert
	closed bool
	Fail   bool
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Send records the alert, or fails if Fail is set.
func (m *MockNotifier) Send(ctx context.Context, alert Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("mock notifier: send refused")
	}
	m.sent = append(m.sent, alert)
	return nil
}

// Close marks the notifier closed.
func (m *MockNotifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns a copy of the recorded alerts.
func (m *MockNotifier) Sent() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, len(m.sent))
	copy(out, m.sent)
	return out
}

// Closed reports whether Close was called.
func (m *MockNotifier) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
