package detector

import (
	"time"

	"github.com/tphakala/sleepmon/internal/session"
)

// MotionTracker turns per-tick motion samples into intervals. An interval
// opens on the first present sample and closes once the signal has been
// continuously absent for longer than the cooldown. It is not safe for
// concurrent use.
type MotionTracker struct {
	cooldown time.Duration
	ongoing  bool
	start    time.Time
	lastSeen time.Time
}

// NewMotionTracker returns an idle tracker.
func NewMotionTracker(cooldown time.Duration) *MotionTracker {
	if cooldown < 0 {
		cooldown = 0
	}
	return &MotionTracker{cooldown: cooldown}
}

// Observe feeds one sample. It returns the completed interval when this
// sample closes one.
func (t *MotionTracker) Observe(present bool, now time.Time) (session.MotionEvent, bool) {
	if present {
		if !t.ongoing {
			t.ongoing = true
			t.start = now
		}
		t.lastSeen = now
		return session.MotionEvent{}, false
	}

	if t.ongoing && now.Sub(t.lastSeen) > t.cooldown {
		t.ongoing = false
		return session.NewMotionEvent(t.start, now), true
	}
	return session.MotionEvent{}, false
}

// Flush closes an open interval at now.
func (t *MotionTracker) Flush(now time.Time) (session.MotionEvent, bool) {
	if !t.ongoing {
		return session.MotionEvent{}, false
	}
	t.ongoing = false
	return session.NewMotionEvent(t.start, now), true
}

// Ongoing reports whether an interval is open.
func (t *MotionTracker) Ongoing() bool {
	return t.ongoing
}
