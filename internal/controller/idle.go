package controller

import (
	"sync"
	"time"
)

// IdleTimer is a single-slot delayed callback. Scheduling replaces any
// pending callback and a callback never runs after Cancel has returned.
type IdleTimer struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
	gen   uint64
}

// NewIdleTimer returns a timer that runs fn delay after each Schedule.
func NewIdleTimer(delay time.Duration, fn func()) *IdleTimer {
	return &IdleTimer{delay: delay, fn: fn}
}

// Schedule arms the timer, cancelling a pending callback first.
func (t *IdleTimer) Schedule() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	gen := t.gen
	t.timer = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if gen != t.gen {
			return
		}
		t.timer = nil
		t.gen++
		t.fn()
	})
}

// Cancel drops a pending callback.
func (t *IdleTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Pending reports whether a callback is armed.
func (t *IdleTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *IdleTimer) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}
