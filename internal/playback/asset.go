package playback

import (
	"sync"
	"time"
)

// ClockAsset is an Asset whose position advances with a clock while playing.
// It stands in for an audio device in the terminal player and in tests.
type ClockAsset struct {
	mu        sync.Mutex
	now       func() time.Time
	duration  time.Duration
	base      time.Duration
	startedAt time.Time
	playing   bool
}

// NewClockAsset creates a paused asset of the given length. A nil now uses
// time.Now.
func NewClockAsset(duration time.Duration, now func() time.Time) *ClockAsset {
	if now == nil {
		now = time.Now
	}
	return &ClockAsset{now: now, duration: duration}
}

// Duration returns the asset length.
func (a *ClockAsset) Duration() time.Duration {
	return a.duration
}

// Play starts the clock from the current position.
func (a *ClockAsset) Play() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playing {
		return nil
	}
	if a.base >= a.duration {
		a.base = 0
	}
	a.startedAt = a.now()
	a.playing = true
	return nil
}

// Pause freezes the position.
func (a *ClockAsset) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.playing {
		return
	}
	a.base = a.positionLocked()
	a.playing = false
}

// SetPosition jumps to p, keeping the playing flag.
func (a *ClockAsset) SetPosition(p time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.base = clampDuration(p, a.duration)
	if a.playing {
		a.startedAt = a.now()
	}
}

// Position returns the current position, capped at the duration.
func (a *ClockAsset) Position() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positionLocked()
}

// Playing reports whether the clock is running.
func (a *ClockAsset) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

func (a *ClockAsset) positionLocked() time.Duration {
	if !a.playing {
		return a.base
	}
	return clampDuration(a.base+a.now().Sub(a.startedAt), a.duration)
}

func clampDuration(d, limit time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > limit {
		return limit
	}
	return d
}
