// Package ratelimit implements a sliding-window per-identifier request
// limiter. It guards against a single sender flooding a channel; there is
// no global cap across identifiers.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 10
	DefaultWindow      = time.Minute
)

// Limiter tracks request timestamps per identifier within a trailing window.
// It is safe for concurrent use from multiple connector goroutines.
type Limiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	requests map[string][]time.Time
	now      func() time.Time
}

// New creates a limiter admitting at most max requests per identifier
// within the trailing window. Non-positive arguments fall back to the
// defaults.
func New(max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		max:      max,
		window:   window,
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether a request from the identifier is admitted. An
// admitted request is recorded against the window; a rejected one is not.
func (l *Limiter) Allow(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.evict(identifier)
	if len(recent) >= l.max {
		l.requests[identifier] = recent
		return false
	}
	l.requests[identifier] = append(recent, l.now())
	return true
}

// Remaining returns how many requests the identifier may still make in the
// current window, clamped at zero. It does not record a request.
func (l *Limiter) Remaining(identifier string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.evict(identifier)
	l.requests[identifier] = recent
	if n := l.max - len(recent); n > 0 {
		return n
	}
	return 0
}

// Reset clears all recorded history for one identifier.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.requests, identifier)
}

// evict drops timestamps older than the window. Caller must hold mu.
func (l *Limiter) evict(identifier string) []time.Time {
	cutoff := l.now().Add(-l.window)
	recent := l.requests[identifier]
	i := 0
	for i < len(recent) && !recent[i].After(cutoff) {
		i++
	}
	return recent[i:]
}
