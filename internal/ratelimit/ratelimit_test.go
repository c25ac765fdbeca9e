package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewLimiterWithClock(limit, window, clock.Now), clock
}

func TestAllowAtLimitBoundary(t *testing.T) {
	limiter, _ := newTestLimiter(60, time.Minute)

	for i := 1; i <= 60; i++ {
		if !limiter.Allow("sender-1", "session-1") {
			t.Fatalf("message %d should be allowed", i)
		}
	}

	if limiter.Allow("sender-1", "session-1") {
		t.Fatal("61st message in the same window should be rejected")
	}
	if limiter.Allow("sender-1", "session-1") {
		t.Fatal("subsequent messages in the same window should stay rejected")
	}
}

func TestWindowResetsCounter(t *testing.T) {
	limiter, clock := newTestLimiter(2, time.Minute)

	if !limiter.Allow("sender-1", "session-1") {
		t.Fatal("first message should be allowed")
	}
	if !limiter.Allow("sender-1", "session-1") {
		t.Fatal("second message should be allowed")
	}
	if limiter.Allow("sender-1", "session-1") {
		t.Fatal("third message should be rejected")
	}

	clock.Advance(time.Minute)

	if !limiter.Allow("sender-1", "session-1") {
		t.Fatal("message after window boundary should reset the counter")
	}
	if !limiter.Allow("sender-1", "session-1") {
		t.Fatal("counter should have restarted at 1 after the boundary")
	}
	if limiter.Allow("sender-1", "session-1") {
		t.Fatal("limit applies again inside the fresh window")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)

	if !limiter.Allow("sender-1", "session-1") {
		t.Fatal("first sender should be allowed")
	}
	if limiter.Allow("sender-1", "session-1") {
		t.Fatal("first sender should be throttled")
	}

	if !limiter.Allow("sender-2", "session-1") {
		t.Fatal("a different sender in the same session has its own window")
	}
	if !limiter.Allow("sender-1", "session-2") {
		t.Fatal("the same sender in a different session has its own window")
	}
}

func TestExpiredWindowsAreSwept(t *testing.T) {
	limiter, clock := newTestLimiter(60, time.Minute)

	for i := 0; i < sweepThreshold+10; i++ {
		limiter.Allow(fmt.Sprintf("sender-%d", i), "session-1")
	}
	if limiter.Size() <= sweepThreshold {
		t.Fatalf("expected map to grow past threshold, got %d", limiter.Size())
	}

	clock.Advance(2 * time.Minute)
	limiter.Allow("fresh-sender", "session-1")

	if limiter.Size() != 1 {
		t.Fatalf("expected expired windows to be evicted, got %d entries", limiter.Size())
	}
}

func TestConcurrentAllowDoesNotLoseIncrements(t *testing.T) {
	limiter, _ := newTestLimiter(1000, time.Minute)

	done := make(chan struct{})
	allowed := make(chan int, 8)
	for g := 0; g < 8; g++ {
		go func() {
			count := 0
			for i := 0; i < 200; i++ {
				if limiter.Allow("sender-1", "session-1") {
					count++
				}
			}
			allowed <- count
			done <- struct{}{}
		}()
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	close(allowed)

	total := 0
	for c := range allowed {
		total += c
	}
	if total != 1000 {
		t.Fatalf("expected exactly 1000 of 1600 messages allowed, got %d", total)
	}
}
