// Package ratelimit enforces a fixed-window request limit.
package ratelimit

import (
	"fmt"
	"time"
)

// CheckResult is the outcome of a rate limit check.
type CheckResult struct {
	Exceeded bool
	Current  int
	Limit    int
	Reason   string
}

// Check compares the current count against the limit.
func Check(count int, limit Limit) CheckResult {
	if !limit.Enabled() {
		return CheckResult{}
	}
	if count >= limit.MaxRequests {
		return CheckResult{
			Exceeded: true,
			Current:  count,
			Limit:    limit.MaxRequests,
			Reason: fmt.Sprintf("rate limit exceeded: %d/%d requests in %s window",
				count, limit.MaxRequests, limit.Window),
		}
	}
	return CheckResult{}
}

// Limiter applies one Limit to one Tracker. It is safe for concurrent use.
type Limiter struct {
	limit   Limit
	tracker Tracker
}

// New returns a limiter for l. A disabled limit allows everything.
func New(l Limit) *Limiter {
	return &Limiter{limit: l}
}

// Allow checks the limit at now and, when within it, counts the request.
func (l *Limiter) Allow(now time.Time) CheckResult {
	if l == nil || !l.limit.Enabled() {
		return CheckResult{}
	}
	l.tracker.mu.Lock()
	defer l.tracker.mu.Unlock()

	count := l.tracker.snapshot(l.limit.Window, now)
	result := Check(count, l.limit)
	if !result.Exceeded {
		l.tracker.count++
	}
	return result
}
