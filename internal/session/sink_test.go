package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkRejectsAppendsWhenSealed(t *testing.T) {
	s := NewEventSink()

	require.ErrorIs(t, s.AppendSound(SoundPeak{Timestamp: time.Now()}), ErrSessionClosed)
	require.ErrorIs(t, s.AppendMotion(MotionEvent{}), ErrSessionClosed)

	s.setOpen(true)
	require.NoError(t, s.AppendSound(SoundPeak{Timestamp: time.Now()}))

	s.setOpen(false)
	require.ErrorIs(t, s.AppendSound(SoundPeak{Timestamp: time.Now()}), ErrSessionClosed)

	motion, sound := s.Counts()
	assert.Equal(t, 0, motion)
	assert.Equal(t, 1, sound)
}

func TestSinkClearPanicsOnLiveSession(t *testing.T) {
	s := NewEventSink()
	s.setOpen(true)
	assert.Panics(t, s.Clear)

	s.setOpen(false)
	assert.NotPanics(t, s.Clear)
}

func TestSinkSnapshotIsACopy(t *testing.T) {
	s := NewEventSink()
	s.setOpen(true)
	base := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendSound(SoundPeak{Timestamp: base}))

	snap := s.Snapshot()
	snap.SoundPeaks[0].Timestamp = base.Add(time.Hour)
	require.NoError(t, s.AppendSound(SoundPeak{Timestamp: base.Add(time.Second)}))

	again := s.Snapshot()
	require.Len(t, again.SoundPeaks, 2)
	assert.Equal(t, base, again.SoundPeaks[0].Timestamp)
	assert.Len(t, snap.SoundPeaks, 1)
}

func TestSinkConcurrentAppends(t *testing.T) {
	const perKind = 50

	for run := range 20 {
		s := NewEventSink()
		s.setOpen(true)
		rec := sinkRecorder{sink: s}
		base := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range perKind {
				start := base.Add(time.Duration(i) * time.Minute)
				assert.NoError(t, rec.RecordMotion(NewMotionEvent(start, start.Add(time.Second))))
			}
		}()
		go func() {
			defer wg.Done()
			for i := range perKind {
				assert.NoError(t, rec.RecordSound(SoundPeak{Timestamp: base.Add(time.Duration(i) * time.Second)}))
			}
		}()
		wg.Wait()

		snap := s.Snapshot()
		require.Equal(t, 2*perKind, snap.Len(), "run %d", run)

		// each producer's own order is preserved and nothing is duplicated
		for i, ev := range snap.MotionEvents {
			assert.Equal(t, base.Add(time.Duration(i)*time.Minute), ev.Start)
		}
		for i, p := range snap.SoundPeaks {
			assert.Equal(t, base.Add(time.Duration(i)*time.Second), p.Timestamp)
		}
	}
}

func TestNewMotionEvent(t *testing.T) {
	start := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)

	ev := NewMotionEvent(start, start.Add(90*time.Second))
	assert.Equal(t, 90*time.Second, ev.Duration)

	reversed := NewMotionEvent(start, start.Add(-time.Second))
	assert.Equal(t, time.Duration(0), reversed.Duration)
	assert.Equal(t, start, reversed.End)
}
