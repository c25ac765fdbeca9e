package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultLimit and DefaultWindow cap chat throughput at 60 messages
	// per sender per session per minute.
	DefaultLimit  = 60
	DefaultWindow = 60 * time.Second

	// sweepThreshold bounds the window map: once it grows past this many
	// entries, expired windows are evicted on the next Allow call.
	sweepThreshold = 4096
)

type window struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window message throttle keyed by (sender, session).
// The counter resets at the stored window boundary rather than sliding,
// so a sender can burst up to twice the nominal rate across a boundary.
// That matches the observed production behavior and is kept deliberately.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewLimiter() *Limiter {
	return NewLimiterWithClock(DefaultLimit, DefaultWindow, time.Now)
}

func NewLimiterWithClock(limit int, windowLen time.Duration, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		window:  windowLen,
		now:     now,
	}
}

// Allow records one message attempt for the (sender, session) pair and
// reports whether it fits in the current window. The Nth message where
// N == limit is allowed; N == limit+1 is rejected until the window rolls.
func (l *Limiter) Allow(senderID, sessionID string) bool {
	key := windowKey(senderID, sessionID)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.windows) > sweepThreshold {
		l.sweepLocked(now)
	}

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.window)}
		return true
	}

	w.count++
	return w.count <= l.limit
}

// Size reports the number of tracked windows, expired ones included.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *Limiter) sweepLocked(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

func windowKey(senderID, sessionID string) string {
	return fmt.Sprintf("%s_%s", senderID, sessionID)
}
