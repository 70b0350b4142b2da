// Package ratelimit implements fixed-window request counting keyed by
// client identity.
package ratelimit

import (
	"sync"
	"time"

	"github.com/collabcore/realtime-platform/pkg/metrics"
)

// entry is one key's counter for the current window. Entries are
// replaced, not mutated, when the window rolls over, so ResetTime only
// moves forward for a given key.
type entry struct {
	count     int
	resetTime time.Time
}

// Limiter counts requests per key over fixed windows. All methods are
// safe for concurrent use; counters for distinct keys are independent.
//
// State is process-local. A multi-instance deployment needs these
// counters in a shared atomically-updated store behind the same
// interface, since independent in-process maps under-count.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New creates a Limiter. The clock is injectable for tests; pass nil
// for time.Now.
func New(now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Allow records a request for key and reports whether it fits within
// limit requests per window. The first request of a window always
// passes and starts a fresh counter.
func (l *Limiter) Allow(key string, limit int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.resetTime) {
		l.entries[key] = entry{count: 1, resetTime: now.Add(window)}
		metrics.RecordRateLimitDecision(true)
		return true
	}

	e.count++
	l.entries[key] = e
	allowed := e.count <= limit
	metrics.RecordRateLimitDecision(allowed)
	return allowed
}

// Remaining returns how many requests key may still make in its current
// window, or the full quota if the window expired or was never started.
func (l *Limiter) Remaining(key string, limit int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || l.now().After(e.resetTime) {
		return limit
	}
	if e.count >= limit {
		return 0
	}
	return limit - e.count
}

// Reset returns when key's current window ends. The zero time means no
// active window.
func (l *Limiter) Reset(key string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || l.now().After(e.resetTime) {
		return time.Time{}
	}
	return e.resetTime
}

// Sweep drops entries whose window has expired and returns how many
// were removed. Run it periodically; without it the key map grows
// without bound.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, e := range l.entries {
		if now.After(e.resetTime) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys, expired or not.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
