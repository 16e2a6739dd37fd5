package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)

func ms(n int) time.Time { return t0.Add(time.Duration(n) * time.Millisecond) }

func TestPeakDetectorConfirmsAtThreshold(t *testing.T) {
	d := NewPeakDetector(PeakConfig{Threshold: 5, Window: time.Second, Cooldown: 100 * time.Millisecond}, t0)

	for i := 1; i <= 4; i++ {
		assert.False(t, d.Trigger(ms(i)), "trigger %d", i)
	}
	assert.True(t, d.Trigger(ms(5)))
	assert.Zero(t, d.Count())
}

func TestPeakDetectorCooldownSuppressesAndResets(t *testing.T) {
	d := NewPeakDetector(PeakConfig{Threshold: 2, Window: time.Second, Cooldown: 100 * time.Millisecond}, t0)

	assert.False(t, d.Trigger(ms(1)))
	assert.True(t, d.Trigger(ms(2)))

	// threshold reached again inside the cooldown: suppressed, count restarts
	assert.False(t, d.Trigger(ms(3)))
	assert.False(t, d.Trigger(ms(4)))
	assert.Zero(t, d.Count())

	assert.False(t, d.Trigger(ms(150)))
	assert.True(t, d.Trigger(ms(151)))
}

func TestPeakDetectorWindowExpiry(t *testing.T) {
	d := NewPeakDetector(PeakConfig{Threshold: 3, Window: time.Second}, t0)

	assert.False(t, d.Trigger(ms(100)))
	assert.False(t, d.Trigger(ms(200)))
	assert.Equal(t, 2, d.Count())

	// more than a window after the window opened: the count restarts
	assert.False(t, d.Trigger(ms(1001)))
	assert.Equal(t, 1, d.Count())
	assert.False(t, d.Trigger(ms(1100)))
	assert.True(t, d.Trigger(ms(1200)))
}

func TestPeakDetectorWindowBoundaryIsInclusive(t *testing.T) {
	d := NewPeakDetector(PeakConfig{Threshold: 2, Window: time.Second}, t0)

	assert.False(t, d.Trigger(ms(500)))
	// exactly one window after the start still belongs to it
	assert.True(t, d.Trigger(ms(1000)))
}

func TestPeakDetectorDefaults(t *testing.T) {
	d := NewPeakDetector(PeakConfig{}, t0)
	assert.Equal(t, DefaultPeakThreshold, d.cfg.Threshold)
	assert.Equal(t, DefaultPeakWindow, d.cfg.Window)
}

func TestMotionTrackerInterval(t *testing.T) {
	tr := NewMotionTracker(3 * time.Second)
	sec := func(n float64) time.Time { return t0.Add(time.Duration(n * float64(time.Second))) }

	_, ok := tr.Observe(false, sec(0))
	assert.False(t, ok)

	_, ok = tr.Observe(true, sec(1))
	assert.False(t, ok)
	assert.True(t, tr.Ongoing())

	// gaps shorter than the cooldown keep the interval open
	tr.Observe(false, sec(2))
	tr.Observe(true, sec(3.5))
	_, ok = tr.Observe(false, sec(6.5))
	assert.False(t, ok, "exactly the cooldown does not close")

	ev, ok := tr.Observe(false, sec(6.6))
	assert.True(t, ok)
	assert.Equal(t, sec(1), ev.Start)
	assert.Equal(t, sec(6.6), ev.End)
	assert.Equal(t, ev.End.Sub(ev.Start), ev.Duration)
	assert.False(t, tr.Ongoing())

	_, ok = tr.Observe(false, sec(20))
	assert.False(t, ok)
}

func TestMotionTrackerFlush(t *testing.T) {
	tr := NewMotionTracker(time.Second)

	_, ok := tr.Flush(t0)
	assert.False(t, ok)

	tr.Observe(true, t0)
	ev, ok := tr.Flush(t0.Add(500 * time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, ev.Duration)

	_, ok = tr.Flush(t0.Add(time.Second))
	assert.False(t, ok)
}
