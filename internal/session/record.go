package session

import (
	"context"
	"time"
)

// Record is the durable form of a completed session.
type Record struct {
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	MotionEvents []MotionEvent `json:"motion_events"`
	SoundPeaks   []SoundPeak   `json:"sound_peaks"`
	Report       *SleepReport  `json:"sleep_report"`
}

// Store persists records. Save returns the location of the written record.
type Store interface {
	Save(ctx context.Context, rec *Record) (string, error)
}

// Result is what a successful persist hands back to the caller.
type Result struct {
	SessionID string
	Location  string
	Record    *Record
}

// Date returns the calendar date of the session start.
func (r *Record) Date() string {
	return r.StartTime.Format(time.DateOnly)
}

// Rescore recomputes the report from the stored timestamps and events.
func (r *Record) Rescore() (*SleepReport, error) {
	s := &MonitoringSession{StartTime: r.StartTime, EndTime: r.EndTime}
	return BuildReport(s, Snapshot{MotionEvents: r.MotionEvents, SoundPeaks: r.SoundPeaks})
}
