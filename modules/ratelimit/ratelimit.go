package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding window rate limiter keyed by client (usually the
// remote IP). Timestamps inside the window are kept per key; the window
// slides on every check.
type Limiter struct {
	Limit  int
	Window time.Duration

	mu       sync.Mutex
	requests map[string][]time.Time
	now      func() time.Time
}

func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		Limit:    limit,
		Window:   window,
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// prune drops timestamps older than the window. Caller holds the lock.
func (l *Limiter) prune(key string, now time.Time) []time.Time {
	windowStart := now.Add(-l.Window)

	kept := l.requests[key][:0]
	for _, ts := range l.requests[key] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	l.requests[key] = kept
	return kept
}

// Allow records the request and reports whether it fits in the window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.prune(key, now)) >= l.Limit {
		return false
	}

	l.requests[key] = append(l.requests[key], now)
	return true
}

// Remaining reports how many requests the key has left in the window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.Limit - len(l.prune(key, l.now()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryAfter reports how long until the oldest request in the window
// expires. Zero when the key is not limited.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.prune(key, now)
	if len(kept) == 0 {
		return 0
	}

	oldest := kept[0]
	for _, ts := range kept[1:] {
		if ts.Before(oldest) {
			oldest = ts
		}
	}

	return l.Window - now.Sub(oldest)
}

// Cleanup drops keys with no requests left in the window and returns how
// many were removed. Meant for a periodic housekeeping ticker.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0

	for key := range l.requests {
		if len(l.prune(key, now)) == 0 {
			delete(l.requests, key)
			removed++
		}
	}

	return removed
}
