// Package ratelimit implements the telemetry rate limiter (§4.4): a fixed
// windowed counter gating how many decisions may be logged per window.
package ratelimit

import (
	"sync"
	"time"
)

// MaxWindow is the clamp applied to window_size_sec (§4.4: "clamped to
// 3600s window").
const MaxWindow = time.Hour

// Limiter is a fixed windowed counter. A window of count events is allowed
// per windowSize; the counter resets atomically to the start of the next
// window once the current one elapses.
type Limiter struct {
	mu sync.Mutex

	logsPerSec int64
	window     time.Duration

	windowStart time.Time
	count       int64

	now func() time.Time
}

// New constructs a Limiter with the given settings. Either logsPerSec == 0
// or windowSizeSec == 0 disables limiting entirely (§4.4).
func New(logsPerSec int64, windowSizeSec int64) *Limiter {
	l := &Limiter{now: time.Now}
	l.ModifySettings(logsPerSec, windowSizeSec)
	return l
}

// ModifySettings atomically replaces the limiter's rate and window,
// resetting the current window's count. windowSizeSec is clamped to
// MaxWindow.
func (l *Limiter) ModifySettings(logsPerSec int64, windowSizeSec int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := time.Duration(windowSizeSec) * time.Second
	if window > MaxWindow {
		window = MaxWindow
	}

	l.logsPerSec = logsPerSec
	l.window = window
	l.count = 0
	l.windowStart = l.now()
}

// Decide reports whether the caller may log this event, consuming one slot
// in the current window if so. Either logsPerSec or window being zero
// disables limiting and Decide always allows.
func (l *Limiter) Decide() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logsPerSec <= 0 || l.window <= 0 {
		return true
	}

	now := l.now()
	if now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}

	capacity := l.logsPerSec * int64(l.window/time.Second)
	if l.count >= capacity {
		return false
	}
	l.count++
	return true
}

// WithClock overrides the limiter's time source; intended for tests only.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	l.windowStart = now()
	return l
}
