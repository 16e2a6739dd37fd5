package session

import (
	"encoding/json"
	"time"
)

// MotionEvent is one completed motion interval.
type MotionEvent struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// NewMotionEvent builds an interval from its bounds. An end before start
// yields a zero-length event at start.
func NewMotionEvent(start, end time.Time) MotionEvent {
	if end.Before(start) {
		end = start
	}
	return MotionEvent{Start: start, End: end, Duration: end.Sub(start)}
}

type motionEventJSON struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration float64   `json:"duration"` // seconds
}

// MarshalJSON writes the interval with its duration in seconds.
func (e MotionEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(motionEventJSON{
		Start:    e.Start,
		End:      e.End,
		Duration: e.Duration.Seconds(),
	})
}

// UnmarshalJSON reads an interval. The duration is recomputed from the
// bounds so it always equals End - Start.
func (e *MotionEvent) UnmarshalJSON(data []byte) error {
	var raw motionEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = NewMotionEvent(raw.Start, raw.End)
	return nil
}

// SoundPeak is one confirmed acoustic peak.
type SoundPeak struct {
	Timestamp time.Time
}

// MarshalJSON writes the peak as a bare timestamp.
func (p SoundPeak) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Timestamp)
}

// UnmarshalJSON reads a bare timestamp.
func (p *SoundPeak) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &p.Timestamp)
}

// Snapshot is a point-in-time copy of the events of a session.
type Snapshot struct {
	MotionEvents []MotionEvent
	SoundPeaks   []SoundPeak
}

// TotalMotion sums the durations of all motion intervals.
func (s Snapshot) TotalMotion() time.Duration {
	var total time.Duration
	for _, ev := range s.MotionEvents {
		total += ev.Duration
	}
	return total
}

// Len returns the number of events of both kinds.
func (s Snapshot) Len() int {
	return len(s.MotionEvents) + len(s.SoundPeaks)
}

// MonitoringSession is the interval between a start and a stop trigger.
// EndTime is zero while the session is running.
type MonitoringSession struct {
	ID        string
	StartTime time.Time
	EndTime   time.Time
}

// Ended reports whether the session has been stopped.
func (s *MonitoringSession) Ended() bool {
	return !s.EndTime.IsZero()
}

// Duration is the monitored time, zero while running.
func (s *MonitoringSession) Duration() time.Duration {
	if !s.Ended() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
