package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceSession() (*MonitoringSession, Snapshot) {
	start := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	s := &MonitoringSession{StartTime: start, EndTime: start.Add(8 * time.Hour)}

	var snap Snapshot
	for i := range 3 {
		// 10 + 10 + 10 minutes of motion = 0.5h
		ms := start.Add(time.Duration(i+1) * time.Hour)
		snap.MotionEvents = append(snap.MotionEvents, NewMotionEvent(ms, ms.Add(10*time.Minute)))
	}
	for i := range 10 {
		snap.SoundPeaks = append(snap.SoundPeaks, SoundPeak{Timestamp: start.Add(time.Duration(i+1) * 30 * time.Minute)})
	}
	return s, snap
}

func TestBuildReportReferenceSession(t *testing.T) {
	s, snap := referenceSession()

	r, err := BuildReport(s, snap)
	require.NoError(t, err)

	assert.Equal(t, &SleepReport{
		SleepScore:              91.88,
		MonitoringDurationHours: 8,
		MotionEventCount:        3,
		TotalMotionHours:        0.5,
		MotionPercentage:        6.25,
		SoundPeakCount:          10,
		SoundPeaksPerHour:       1.25,
	}, r)
}

func TestBuildReportRequiresTimestamps(t *testing.T) {
	_, err := BuildReport(nil, Snapshot{})
	require.ErrorIs(t, err, ErrScoreUnavailable)

	_, err = BuildReport(&MonitoringSession{StartTime: time.Now()}, Snapshot{})
	require.ErrorIs(t, err, ErrScoreUnavailable)
}

func TestBuildReportZeroDuration(t *testing.T) {
	now := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	r, err := BuildReport(&MonitoringSession{StartTime: now, EndTime: now}, Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, DefaultScore, r.SleepScore)
	assert.Zero(t, r.MotionPercentage)
	assert.Zero(t, r.SoundPeaksPerHour)
}

func TestReportJSONLayout(t *testing.T) {
	s, snap := referenceSession()
	r, err := BuildReport(s, snap)
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"sleep_score": 91.88,
		"monitoring_duration": "8.00 hours",
		"motion_events": 3,
		"total_motion_duration": "0.50 hours",
		"motion_percentage": "6.25%",
		"sound_peaks": 10,
		"sound_peaks_per_hour": 1.25
	}`, string(data))
}

func TestReportJSONRejectsMalformedDuration(t *testing.T) {
	var r SleepReport
	err := json.Unmarshal([]byte(`{"monitoring_duration":"eight hours","total_motion_duration":"0 hours","motion_percentage":"0%"}`), &r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring_duration")
}

func TestRecordRoundTrip(t *testing.T) {
	s, snap := referenceSession()
	r, err := BuildReport(s, snap)
	require.NoError(t, err)

	rec := &Record{
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		MotionEvents: snap.MotionEvents,
		SoundPeaks:   snap.SoundPeaks,
		Report:       r,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var loaded Record
	require.NoError(t, json.Unmarshal(data, &loaded))

	assert.Equal(t, rec.StartTime, loaded.StartTime)
	assert.Equal(t, rec.EndTime, loaded.EndTime)
	assert.Equal(t, rec.MotionEvents, loaded.MotionEvents)
	assert.Equal(t, rec.SoundPeaks, loaded.SoundPeaks)
	assert.Equal(t, rec.Report, loaded.Report)
	assert.Equal(t, "2024-01-01", loaded.Date())

	rescored, err := loaded.Rescore()
	require.NoError(t, err)
	assert.Equal(t, rec.Report, rescored)
}

func TestMotionEventJSON(t *testing.T) {
	start := time.Date(2024, 1, 1, 23, 0, 0, 500_000_000, time.UTC)
	ev := NewMotionEvent(start, start.Add(4500*time.Millisecond))

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2024-01-01T23:00:00.5Z","end":"2024-01-01T23:00:05Z","duration":4.5}`, string(data))
}
