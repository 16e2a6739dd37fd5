package detector

import "time"

// Acoustic defaults.
const (
	DefaultPeakThreshold  = 5
	DefaultPeakWindow     = time.Second
	DefaultAcousticPoll   = time.Millisecond
	DefaultMotionCooldown = 3 * time.Second
	DefaultMotionPoll     = 100 * time.Millisecond
)

// PeakConfig tunes the acoustic peak counter.
type PeakConfig struct {
	Threshold int           // raw triggers within Window that confirm a peak
	Window    time.Duration // sliding window length
	Cooldown  time.Duration // minimum gap between confirmed peaks, zero disables
}

func (c PeakConfig) withDefaults() PeakConfig {
	if c.Threshold <= 0 {
		c.Threshold = DefaultPeakThreshold
	}
	if c.Window <= 0 {
		c.Window = DefaultPeakWindow
	}
	if c.Cooldown < 0 {
		c.Cooldown = 0
	}
	return c
}

// PeakDetector counts raw acoustic triggers in a window and confirms a peak
// when the count reaches the threshold. The count restarts at the threshold
// even when the cooldown suppresses the peak. It is not safe for concurrent
// use.
type PeakDetector struct {
	cfg         PeakConfig
	windowStart time.Time
	count       int
	lastPeak    time.Time
}

// NewPeakDetector returns a detector whose first window opens at start.
func NewPeakDetector(cfg PeakConfig, start time.Time) *PeakDetector {
	return &PeakDetector{cfg: cfg.withDefaults(), windowStart: start}
}

// Trigger registers one raw trigger at now and reports whether it confirms
// a peak.
func (d *PeakDetector) Trigger(now time.Time) bool {
	if now.Sub(d.windowStart) > d.cfg.Window {
		d.windowStart = now
		d.count = 0
	}
	d.count++

	if d.count < d.cfg.Threshold {
		return false
	}
	d.count = 0

	if !d.lastPeak.IsZero() && now.Sub(d.lastPeak) < d.cfg.Cooldown {
		return false
	}
	d.lastPeak = now
	return true
}

// Count returns the triggers counted in the current window.
func (d *PeakDetector) Count() int {
	return d.count
}
