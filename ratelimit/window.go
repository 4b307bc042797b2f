// Package ratelimit provides sliding-window admission control for
// playback-triggering actions.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultCapacity is the default number of admissions per rolling window.
const DefaultCapacity = 2

const windowSize = time.Minute

// Window admits at most capacity actions per trailing windowSize. Timestamps
// older than the window are pruned before every admission check.
type Window struct {
	mu       sync.Mutex
	capacity int
	stamps   []time.Time
	now      func() time.Time
}

// NewWindow creates a sliding window with the given capacity. A non-positive
// capacity falls back to DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		capacity: capacity,
		now:      time.Now,
	}
}

// TryAdmit reports whether another action may be taken now. An admitted call
// consumes one slot; a rejected call consumes nothing.
func (w *Window) TryAdmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.prune(now)

	if len(w.stamps) >= w.capacity {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// Len returns the number of admissions still inside the window.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.stamps)
}

// Reset drops all recorded admissions.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stamps = nil
}

func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-windowSize)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	w.stamps = w.stamps[i:]
}
