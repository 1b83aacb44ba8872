package ratelimit

import (
	"sync"
	"time"
)

// Tracker counts requests in the current fixed window.
type Tracker struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// snapshot returns the current count. If the window has expired, the
// counter and the window start are reset.
func (t *Tracker) snapshot(window time.Duration, now time.Time) int {
	if now.Sub(t.windowStart) >= window {
		t.count = 0
		t.windowStart = now
	}
	return t.count
}
