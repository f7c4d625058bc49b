package service

import (
	"sync"
	"time"
)

// Default admission gate settings for outbound provider calls.
const (
	DefaultRateLimit       = 20
	DefaultRateLimitWindow = time.Minute
)

// RateLimiterStatus reports the current occupancy of the admission window.
type RateLimiterStatus struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// RateLimiter is a process-wide sliding-window admission gate for outbound
// embedding and model calls. It is an admission check, not a queue: rejected
// calls are not buffered or retried here.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	calls  []time.Time
}

// NewRateLimiter creates a RateLimiter admitting at most limit calls per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewRateLimiterWithClock(limit, window, time.Now)
}

// NewRateLimiterWithClock creates a RateLimiter with an injected clock (for testing).
func NewRateLimiterWithClock(limit int, window time.Duration, now func() time.Time) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    now,
	}
}

// Allow reports whether another call may proceed, recording it when admitted.
func (l *RateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	if len(l.calls) >= l.limit {
		return false
	}

	l.calls = append(l.calls, now)
	return true
}

// Status returns the current window occupancy for observability.
func (l *RateLimiter) Status() RateLimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evict(l.now())

	return RateLimiterStatus{
		Used:      len(l.calls),
		Limit:     l.limit,
		Remaining: l.limit - len(l.calls),
	}
}

// evict drops admitted timestamps older than the window. Caller holds the lock.
func (l *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.calls[:0]
	for _, ts := range l.calls {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.calls = kept
}
