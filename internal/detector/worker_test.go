package detector

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/sensor"
	"github.com/tphakala/sleepmon/internal/session"
	"github.com/tphakala/sleepmon/internal/testutil"
)

type fakeRecorder struct {
	mu     sync.Mutex
	closed bool
	motion []session.MotionEvent
	sound  []session.SoundPeak
}

func (r *fakeRecorder) RecordMotion(ev session.MotionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return session.ErrSessionClosed
	}
	r.motion = append(r.motion, ev)
	return nil
}

func (r *fakeRecorder) RecordSound(p session.SoundPeak) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return session.ErrSessionClosed
	}
	r.sound = append(r.sound, p)
	return nil
}

func (r *fakeRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.motion), len(r.sound)
}

// countingSignal reads a fixed value and counts reads and closes.
type countingSignal struct {
	value  atomic.Bool
	err    atomic.Pointer[error]
	reads  atomic.Int64
	closes atomic.Int32
}

func (s *countingSignal) Read() (bool, error) {
	s.reads.Add(1)
	if e := s.err.Load(); e != nil {
		return false, *e
	}
	return s.value.Load(), nil
}

func (s *countingSignal) Close() error {
	s.closes.Add(1)
	return nil
}

func (s *countingSignal) opener() sensor.Opener {
	return func() (sensor.Signal, error) { return s, nil }
}

type countingObserver struct {
	raw, readErrs, events atomic.Int64
}

func (o *countingObserver) RawTrigger(string) { o.raw.Add(1) }
func (o *countingObserver) ReadError(string)  { o.readErrs.Add(1) }
func (o *countingObserver) Event(string)      { o.events.Add(1) }

func TestAcousticRecordsPeaks(t *testing.T) {
	sig := &countingSignal{}
	sig.value.Store(true)
	rec := &fakeRecorder{}
	obs := &countingObserver{}

	a := NewAcoustic(sig.opener(), rec, AcousticConfig{
		PeakConfig:   PeakConfig{Threshold: 1, Window: time.Second},
		PollInterval: time.Millisecond,
	}, WithObserver(obs))

	require.NoError(t, a.Start(context.Background()))
	assert.True(t, a.Running())
	require.Eventually(t, func() bool {
		_, n := rec.counts()
		return n >= 3
	}, 2*time.Second, time.Millisecond)
	a.Stop()

	assert.False(t, a.Running())
	assert.Equal(t, int32(1), sig.closes.Load())
	_, n := rec.counts()
	assert.Equal(t, int64(n), obs.events.Load())
	assert.GreaterOrEqual(t, obs.raw.Load(), int64(n))

	// no appends after Stop returns
	reads := sig.reads.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, reads, sig.reads.Load())
}

func TestAcousticQuietSignalRecordsNothing(t *testing.T) {
	sig := &countingSignal{}
	rec := &fakeRecorder{}

	a := NewAcoustic(sig.opener(), rec, AcousticConfig{PollInterval: time.Millisecond})
	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return sig.reads.Load() > 10 }, time.Second, time.Millisecond)
	a.Stop()

	_, n := rec.counts()
	assert.Zero(t, n)
}

func TestDetectorDoubleStart(t *testing.T) {
	sig := &countingSignal{}
	a := NewAcoustic(sig.opener(), &fakeRecorder{}, AcousticConfig{PollInterval: time.Millisecond})

	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	err := a.Start(context.Background())
	require.ErrorIs(t, err, ErrRunning)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestDetectorStopIdleIsNoop(t *testing.T) {
	a := NewAcoustic(sensor.Constant(false), &fakeRecorder{}, AcousticConfig{})
	a.Stop()
	a.Stop()
	assert.False(t, a.Running())
}

func TestDetectorOpenFailure(t *testing.T) {
	m := NewMotion(func() (sensor.Signal, error) { return nil, assert.AnError }, &fakeRecorder{}, MotionConfig{})

	err := m.Start(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.True(t, errors.IsCategory(err, errors.CategorySensor))
	assert.False(t, m.Running())
}

func TestDetectorRestartReopensSensor(t *testing.T) {
	var opens atomic.Int32
	sig := &countingSignal{}
	open := func() (sensor.Signal, error) {
		opens.Add(1)
		return sig, nil
	}

	m := NewMotion(open, &fakeRecorder{}, MotionConfig{PollInterval: time.Millisecond})
	for range 3 {
		require.NoError(t, m.Start(context.Background()))
		m.Stop()
	}
	assert.Equal(t, int32(3), opens.Load())
	assert.Equal(t, int32(3), sig.closes.Load())
}

func TestWorkerExitsOnUnavailable(t *testing.T) {
	sig := &countingSignal{}
	unavailable := sensor.ErrUnavailable
	sig.err.Store(&unavailable)
	obs := &countingObserver{}

	a := NewAcoustic(sig.opener(), &fakeRecorder{}, AcousticConfig{PollInterval: time.Millisecond}, WithObserver(obs))
	require.NoError(t, a.Start(context.Background()))

	require.Eventually(t, func() bool { return sig.reads.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), sig.reads.Load(), "polling stops after the first unavailable read")
	assert.Equal(t, int64(1), obs.readErrs.Load())

	a.Stop()
	assert.Equal(t, int32(1), sig.closes.Load())
}

func TestWorkerGivesUpAfterConsecutiveErrors(t *testing.T) {
	sig := &countingSignal{}
	failure := assert.AnError
	sig.err.Store(&failure)

	a := NewAcoustic(sig.opener(), &fakeRecorder{}, AcousticConfig{PollInterval: time.Millisecond}, WithMaxReadErrors(5))
	require.NoError(t, a.Start(context.Background()))

	require.Eventually(t, func() bool { return sig.reads.Load() == 5 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(5), sig.reads.Load())
	a.Stop()
}

func TestWorkerRecoversPanic(t *testing.T) {
	var reads atomic.Int32
	sig := sensor.Func(func() (bool, error) {
		reads.Add(1)
		panic("driver bug")
	})

	m := NewMotion(func() (sensor.Signal, error) { return sig, nil }, &fakeRecorder{}, MotionConfig{PollInterval: time.Millisecond})
	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return reads.Load() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	testutil.WaitForChannel(t, done, testutil.ShortTestTimeout, "Stop did not return after a worker panic")
}

func TestMotionFlushesOpenIntervalOnStop(t *testing.T) {
	sig := &countingSignal{}
	sig.value.Store(true)
	rec := &fakeRecorder{}

	m := NewMotion(sig.opener(), rec, MotionConfig{Cooldown: time.Hour, PollInterval: time.Millisecond})
	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return sig.reads.Load() > 5 }, time.Second, time.Millisecond)

	before := time.Now()
	m.Stop()

	require.Len(t, rec.motion, 1)
	ev := rec.motion[0]
	assert.False(t, ev.End.Before(before), "interval ends at the stop instant")
	assert.Equal(t, ev.End.Sub(ev.Start), ev.Duration)
	assert.Positive(t, ev.Duration)
}

func TestMotionRecordsClosedInterval(t *testing.T) {
	sig := &countingSignal{}
	sig.value.Store(true)
	rec := &fakeRecorder{}

	m := NewMotion(sig.opener(), rec, MotionConfig{Cooldown: 5 * time.Millisecond, PollInterval: time.Millisecond})
	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return sig.reads.Load() > 5 }, time.Second, time.Millisecond)

	sig.value.Store(false)
	require.Eventually(t, func() bool {
		n, _ := rec.counts()
		return n == 1
	}, time.Second, time.Millisecond)
	m.Stop()

	n, _ := rec.counts()
	assert.Equal(t, 1, n, "nothing left to flush")
	assert.GreaterOrEqual(t, rec.motion[0].Duration, 5*time.Millisecond)
}

func TestClosedRecorderDropsEvents(t *testing.T) {
	sig := &countingSignal{}
	sig.value.Store(true)
	rec := &fakeRecorder{closed: true}
	obs := &countingObserver{}

	a := NewAcoustic(sig.opener(), rec, AcousticConfig{
		PeakConfig:   PeakConfig{Threshold: 1},
		PollInterval: time.Millisecond,
	}, WithObserver(obs))
	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return obs.raw.Load() > 3 }, time.Second, time.Millisecond)
	a.Stop()

	assert.Zero(t, obs.events.Load())
}

func TestDetectorWithClock(t *testing.T) {
	sig := &countingSignal{}
	sig.value.Store(true)
	rec := &fakeRecorder{}
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	a := NewAcoustic(sig.opener(), rec, AcousticConfig{
		PeakConfig:   PeakConfig{Threshold: 1},
		PollInterval: time.Millisecond,
	}, WithClock(func() time.Time { return fixed }))
	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool {
		_, n := rec.counts()
		return n >= 1
	}, time.Second, time.Millisecond)
	a.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, p := range rec.sound {
		assert.Equal(t, fixed, p.Timestamp)
	}
}
