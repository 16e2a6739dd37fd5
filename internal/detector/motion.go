package detector

import (
	"time"

	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/sensor"
	"github.com/tphakala/sleepmon/internal/session"
)

// MotionConfig configures the motion detector.
type MotionConfig struct {
	Cooldown     time.Duration // quiet time that closes an interval
	PollInterval time.Duration
}

// Motion records motion intervals from a per-tick presence signal. An
// interval still open at stop is recorded ending at the stop instant.
type Motion struct {
	*worker
	cooldown time.Duration
	tracker  *MotionTracker
}

// NewMotion returns a stopped motion detector recording into rec.
func NewMotion(open sensor.Opener, rec session.Recorder, cfg MotionConfig, opts ...Option) *Motion {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultMotionPoll
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultMotionCooldown
	}

	m := &Motion{cooldown: cooldown}
	m.worker = newWorker("motion", open, rec, poll, opts)
	m.begin = func(time.Time) {
		m.tracker = NewMotionTracker(m.cooldown)
	}
	m.sample = func(present bool, now time.Time) {
		if ev, ok := m.tracker.Observe(present, now); ok {
			m.record(ev)
		}
	}
	m.finish = func(now time.Time) {
		if ev, ok := m.tracker.Flush(now); ok {
			m.log.Debug("flushing open motion interval")
			m.record(ev)
		}
	}
	return m
}

func (m *Motion) record(ev session.MotionEvent) {
	if err := m.rec.RecordMotion(ev); err != nil {
		m.recordFailed("motion", err)
		return
	}
	m.observer.Event(m.name)
	m.log.Debug("motion interval recorded",
		logger.Time("start", ev.Start),
		logger.Duration("duration", ev.Duration))
}
