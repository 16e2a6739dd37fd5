package session

import (
	"slices"
	"sync"
)

// Recorder is the append-only view of a session handed to detectors.
type Recorder interface {
	RecordMotion(ev MotionEvent) error
	RecordSound(peak SoundPeak) error
}

// EventSink holds the events of one session. A single mutex serializes both
// append paths and the snapshot, so a snapshot never observes a half-applied
// append. Appends are only accepted while the sink is open.
type EventSink struct {
	mu     sync.Mutex
	open   bool
	motion []MotionEvent
	sound  []SoundPeak
}

// NewEventSink returns a sealed, empty sink.
func NewEventSink() *EventSink {
	return &EventSink{}
}

// AppendMotion appends a completed motion interval.
func (s *EventSink) AppendMotion(ev MotionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrSessionClosed
	}
	s.motion = append(s.motion, ev)
	return nil
}

// AppendSound appends a confirmed peak.
func (s *EventSink) AppendSound(peak SoundPeak) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrSessionClosed
	}
	s.sound = append(s.sound, peak)
	return nil
}

// Snapshot returns copies of both event lists.
func (s *EventSink) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		MotionEvents: slices.Clone(s.motion),
		SoundPeaks:   slices.Clone(s.sound),
	}
}

// Counts returns the number of motion events and sound peaks.
func (s *EventSink) Counts() (motion, sound int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.motion), len(s.sound)
}

// Clear drops all events. Clearing an open sink is a programming error and panics.
func (s *EventSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		panic("session: Clear called on a live session")
	}
	s.motion = nil
	s.sound = nil
}

func (s *EventSink) setOpen(open bool) {
	s.mu.Lock()
	s.open = open
	s.mu.Unlock()
}

// sinkRecorder exposes only the append paths of a sink.
type sinkRecorder struct {
	sink *EventSink
}

func (r sinkRecorder) RecordMotion(ev MotionEvent) error { return r.sink.AppendMotion(ev) }
func (r sinkRecorder) RecordSound(peak SoundPeak) error  { return r.sink.AppendSound(peak) }
