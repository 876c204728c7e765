package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fixedClock lets tests advance time deterministically.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(max int, window time.Duration) (*Limiter, *fixedClock) {
	clock := &fixedClock{now: time.Unix(1_700_000_000, 0)}
	l := New(max, window)
	l.now = clock.Now
	return l, clock
}

func TestAllow_WithinLimit(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("u1") {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
	}
	if l.Allow("u1") {
		t.Error("request above the limit was allowed")
	}
}

func TestAllow_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	l.Allow("u1")
	l.Allow("u1")
	if l.Allow("u1") {
		t.Fatal("third request inside the window should be rejected")
	}

	clock.Advance(61 * time.Second)
	if !l.Allow("u1") {
		t.Error("request after window elapsed should be allowed")
	}
}

func TestAllow_RejectedNotRecorded(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	l.Allow("u1")
	for i := 0; i < 5; i++ {
		l.Allow("u1")
	}

	// Only the single admitted request occupies the window, so one
	// second past its expiry the identifier is clean again.
	clock.Advance(60*time.Second + time.Second)
	if got := l.Remaining("u1"); got != 1 {
		t.Errorf("Remaining = %d, want 1", got)
	}
}

func TestAllow_IdentifiersIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	if !l.Allow("u1") {
		t.Fatal("first request for u1 rejected")
	}
	if !l.Allow("u2") {
		t.Error("u2 should not be affected by u1's usage")
	}
}

func TestRemaining(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)

	if got := l.Remaining("u1"); got != 5 {
		t.Errorf("Remaining before any request = %d, want 5", got)
	}
	l.Allow("u1")
	l.Allow("u1")
	if got := l.Remaining("u1"); got != 3 {
		t.Errorf("Remaining after 2 requests = %d, want 3", got)
	}
	for i := 0; i < 10; i++ {
		l.Allow("u1")
	}
	if got := l.Remaining("u1"); got != 0 {
		t.Errorf("Remaining at limit = %d, want 0", got)
	}
}

func TestRemaining_NoSideEffect(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)

	for i := 0; i < 5; i++ {
		l.Remaining("u1")
	}
	if got := l.Remaining("u1"); got != 2 {
		t.Errorf("Remaining = %d after repeated queries, want 2", got)
	}
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	l.Allow("u1")
	if l.Allow("u1") {
		t.Fatal("second request should be rejected")
	}
	l.Reset("u1")
	if !l.Allow("u1") {
		t.Error("request after Reset should be allowed")
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l := New(1000, time.Minute)

	var wg sync.WaitGroup
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					l.Allow(id)
					l.Remaining(id)
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range ids {
		if got := l.Remaining(id); got != 1000-200 {
			t.Errorf("Remaining(%q) = %d, want %d", id, got, 800)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	l := New(0, 0)
	if l.max != DefaultMaxRequests {
		t.Errorf("max = %d, want %d", l.max, DefaultMaxRequests)
	}
	if l.window != DefaultWindow {
		t.Errorf("window = %v, want %v", l.window, DefaultWindow)
	}
}
