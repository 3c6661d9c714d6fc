// Package circuitbreaker records which channels recently failed to respond so
// the collector can route new queries away from them for a fixed window.
package circuitbreaker

import (
	"log"
	"sync"
	"time"
)

// DefaultBlockWindow is how long a channel is avoided after a failure.
const DefaultBlockWindow = 3 * time.Hour

// Tracker holds the last-failure time per channel identifier. It is shared
// by every concurrent query; a single mutex covers the read-mostly access
// pattern.
type Tracker struct {
	mu       sync.Mutex
	window   time.Duration
	failures map[string]time.Time
	now      func() time.Time
}

// NewTracker creates a tracker with the given blocking window. A zero window
// falls back to the default.
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultBlockWindow
	}
	return &Tracker{
		window:   window,
		failures: make(map[string]time.Time),
		now:      time.Now,
	}
}

// SetClock overrides the time source, for tests with simulated time.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// RecordFailure stores the current time for the channel, overwriting any
// prior entry.
func (t *Tracker) RecordFailure(channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[channel] = t.now()
	log.Printf("🚨 Channel failure recorded: %s (blocked for %v)", channel, t.window)
}

// IsBlocked reports whether the channel failed within the blocking window.
// An expired entry is removed on the way out; there is no background sweep.
func (t *Tracker) IsBlocked(channel string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	lastFail, exists := t.failures[channel]
	if !exists {
		return false
	}
	if t.now().Sub(lastFail) < t.window {
		return true
	}
	delete(t.failures, channel)
	return false
}

// BlockedUntil returns when the channel's block expires, if it is currently
// blocked.
func (t *Tracker) BlockedUntil(channel string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lastFail, exists := t.failures[channel]
	if !exists {
		return time.Time{}, false
	}
	until := lastFail.Add(t.window)
	if !t.now().Before(until) {
		return time.Time{}, false
	}
	return until, true
}
