// Package ratelimit provides a simple frames-per-second pacer for the
// transmit phase of a benchmark run.
package ratelimit

import "time"

// Limiter paces callers to a fixed number of frames per second on
// average. Not safe for concurrent use.
type Limiter struct {
	nsPerFrame int64
	sent       uint64
	start      time.Time
	checkEvery uint64
}

// New creates a pacer for fps frames per second.
// If fps == 0, pacing is disabled: the returned nil Limiter no-ops.
func New(fps uint64) *Limiter {
	if fps == 0 {
		return nil
	}
	return &Limiter{
		nsPerFrame: int64(time.Second) / int64(fps),
		start:      time.Now(),

		// Check time every ~10ms worth of frames to balance accuracy vs
		// overhead. At least every 32 frames. At most every 1024 frames.
		checkEvery: min(max(fps/100, 32), 1024),
	}
}

// Throttle blocks until the next frame is allowed to leave.
// It does not "catch up" by allowing faster sends after being delayed.
func (l *Limiter) Throttle() {
	if l == nil {
		return
	}

	l.sent++
	if l.sent%l.checkEvery != 0 {
		return // Fast path: only check time periodically.
	}

	// Slow path: check if we need to sleep
	expected := l.start.Add(time.Duration(int64(l.sent) * l.nsPerFrame))

	if now := time.Now(); now.Before(expected) {
		time.Sleep(expected.Sub(now))
	}
	// If behind schedule, naturally catch up by not sleeping
}
