package notify

import (
	"sync"
	"time"
)

// Snapshot describes the rate-limit window at one instant.
type Snapshot struct {
	Sent      int   `json:"sent"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetInMS int64 `json:"reset_in_ms"`
}

// Window is a sliding-window rate limiter over a trailing interval.
// It counts attempts, not confirmed deliveries: a slot is consumed the
// moment an attempt is admitted, before the transport is ever touched.
// State is process-lifetime only and shared across all tenants.
type Window struct {
	limit    int
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	times []time.Time
}

// NewWindow builds a window admitting at most limit attempts per interval.
func NewWindow(limit int, interval time.Duration) *Window {
	return &Window{limit: limit, interval: interval, now: time.Now}
}

// Allow admits or rejects one attempt and returns the snapshot after the
// decision. An admitted attempt is recorded immediately.
func (w *Window) Allow() (bool, Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.pruneLocked(now)

	if len(w.times) >= w.limit {
		return false, w.snapshotLocked(now)
	}

	w.times = append(w.times, now)
	return true, w.snapshotLocked(now)
}

// Peek returns the current snapshot without consuming a slot.
func (w *Window) Peek() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.pruneLocked(now)
	return w.snapshotLocked(now)
}

func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.interval)
	idx := 0
	for idx < len(w.times) && !w.times[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.times = append(w.times[:0], w.times[idx:]...)
	}
}

func (w *Window) snapshotLocked(now time.Time) Snapshot {
	remaining := w.limit - len(w.times)
	if remaining < 0 {
		remaining = 0
	}

	var resetIn int64
	if len(w.times) > 0 {
		resetIn = w.times[0].Add(w.interval).Sub(now).Milliseconds()
		if resetIn < 0 {
			resetIn = 0
		}
	}

	return Snapshot{
		Sent:      len(w.times),
		Limit:     w.limit,
		Remaining: remaining,
		ResetInMS: resetIn,
	}
}
