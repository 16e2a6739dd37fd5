package detector

import (
	"time"

	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/sensor"
	"github.com/tphakala/sleepmon/internal/session"
)

// AcousticConfig configures the acoustic detector.
type AcousticConfig struct {
	PeakConfig
	PollInterval time.Duration
}

// Acoustic confirms sound peaks from raw acoustic triggers and records them.
type Acoustic struct {
	*worker
	cfg   PeakConfig
	peaks *PeakDetector
}

// NewAcoustic returns a stopped acoustic detector recording into rec.
func NewAcoustic(open sensor.Opener, rec session.Recorder, cfg AcousticConfig, opts ...Option) *Acoustic {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultAcousticPoll
	}

	a := &Acoustic{cfg: cfg.withDefaults()}
	a.worker = newWorker("acoustic", open, rec, poll, opts)
	a.begin = func(now time.Time) {
		a.peaks = NewPeakDetector(a.cfg, now)
	}
	a.sample = a.onSample
	return a
}

func (a *Acoustic) onSample(present bool, now time.Time) {
	if !present || !a.peaks.Trigger(now) {
		return
	}

	if err := a.rec.RecordSound(session.SoundPeak{Timestamp: now}); err != nil {
		a.recordFailed("sound_peak", err)
		return
	}
	a.observer.Event(a.name)
	a.log.Debug("sound peak detected", logger.Time("timestamp", now))
}
