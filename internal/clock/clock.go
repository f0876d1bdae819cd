// Package clock provides the engine's single source of time. Every other
// package reads time through a Clock so that a simulated offset set by an
// operator shifts the whole engine at once.
package clock

import (
	"sync"
	"time"
)

// Clock supplies "now", either straight from the system clock or shifted by a
// fixed operator-set offset. The offset is applied on every read, never
// accumulated, so long-running simulated sessions don't drift.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
	nowFn  func() time.Time
}

// New returns a real-time Clock with no offset.
func New() *Clock {
	return &Clock{nowFn: time.Now}
}

// NewAt returns a Clock whose offset is chosen so that Now() reads t at the
// moment of the call. Used to restore a persisted simulated session.
func NewAt(t time.Time) *Clock {
	c := New()
	c.SetOffset(time.Until(t))
	return c
}

// Now returns the current engine time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nowFn().Add(c.offset)
}

// SetOffset replaces the simulated offset. A zero offset returns the clock to
// real time.
func (c *Clock) SetOffset(d time.Duration) {
	c.mu.Lock()
	c.offset = d
	c.mu.Unlock()
}

// Offset returns the current simulated offset (zero in real-time mode).
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Simulated reports whether the clock is running with a non-zero offset.
func (c *Clock) Simulated() bool {
	return c.Offset() != 0
}
