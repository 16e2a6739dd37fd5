package datastore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/session"
)

const logDir = "/data/sleep_logs"

func newTestStore(t *testing.T) (*FileStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := NewFileStore(fs, logDir, WithLocation(time.UTC))
	require.NoError(t, err)
	return s, fs
}

// night builds a scored record starting at 22:00 on the given day.
func night(t *testing.T, day, hours, peaks int) *session.Record {
	t.Helper()
	start := time.Date(2024, 1, day, 22, 0, 0, 0, time.UTC)
	end := start.Add(time.Duration(hours) * time.Hour)

	rec := &session.Record{StartTime: start, EndTime: end, MotionEvents: []session.MotionEvent{}}
	for i := range peaks {
		rec.SoundPeaks = append(rec.SoundPeaks, session.SoundPeak{Timestamp: start.Add(time.Duration(i+1) * time.Minute)})
	}
	if rec.SoundPeaks == nil {
		rec.SoundPeaks = []session.SoundPeak{}
	}
	report, err := rec.Rescore()
	require.NoError(t, err)
	rec.Report = report
	return rec
}

func TestSaveAndLoad(t *testing.T) {
	s, fs := newTestStore(t)
	ctx := context.Background()
	rec := night(t, 1, 8, 10)

	path, err := s.Save(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(logDir, "sleep_log_20240101_220000_to_20240102_060000.json"), path)

	raw, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.ElementsMatch(t, []string{"start_time", "end_time", "motion_events", "sound_peaks", "sleep_report"}, keys(doc))

	loaded, err := s.Load(ctx, SessionID(path))
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)

	// file names are accepted as IDs too
	_, err = s.Load(ctx, filepath.Base(path))
	require.NoError(t, err)

	// no temp files left behind
	infos, err := afero.ReadDir(fs, logDir)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestSaveNeverOverwrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	rec := night(t, 1, 8, 0)

	first, err := s.Save(ctx, rec)
	require.NoError(t, err)
	second, err := s.Save(ctx, rec)
	require.NoError(t, err)
	third, err := s.Save(ctx, rec)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "sleep_log_20240101_220000_to_20240102_060000-1.json", filepath.Base(second))
	assert.Equal(t, "sleep_log_20240101_220000_to_20240102_060000-2.json", filepath.Base(third))
}

func TestSaveCancelledContext(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Save(ctx, night(t, 1, 8, 0))
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadErrors(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Load(ctx, "sleep_log_20240101_220000_to_20240102_060000")
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, errors.IsNotFound(err))

	for _, id := range []string{"../etc/passwd", "sleep_log_x", "a/sleep_log_20240101_220000_to_20240102_060000"} {
		_, err := s.Load(ctx, id)
		require.Error(t, err, id)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation), id)
	}
}

func TestListAndRecent(t *testing.T) {
	s, fs := newTestStore(t)
	ctx := context.Background()

	// saved out of order
	for _, day := range []int{3, 1, 4, 2} {
		_, err := s.Save(ctx, night(t, day, 8, day))
		require.NoError(t, err)
	}
	require.NoError(t, afero.WriteFile(fs, filepath.Join(logDir, "README.txt"), []byte("x"), 0o644))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, []string{"2024-01-04", "2024-01-03", "2024-01-02", "2024-01-01"}, dates(list))

	recent, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-04"}, dates(recent))

	all, err := s.Recent(ctx, 30)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-04", latest.Date)
}

func dates(list []Summary) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Date
	}
	return out
}

func TestCorruptRecordsAreSkipped(t *testing.T) {
	s, fs := newTestStore(t)
	ctx := context.Background()

	for _, day := range []int{1, 2} {
		_, err := s.Save(ctx, night(t, day, 8, 0))
		require.NoError(t, err)
	}
	corrupt := filepath.Join(logDir, FileName(time.Date(2024, 1, 3, 22, 0, 0, 0, time.UTC), time.Date(2024, 1, 4, 6, 0, 0, 0, time.UTC), 0))
	require.NoError(t, afero.WriteFile(fs, corrupt, []byte(`{"start_time": "garbage`), 0o644))

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-02", "2024-01-01"}, dates(list))

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, dates(recent), "corrupt files do not count towards n")
}

func TestSummary(t *testing.T) {
	rec := night(t, 1, 8, 10)
	sum := Summarize("id", rec)

	assert.Equal(t, "2024-01-01", sum.Date)
	assert.Equal(t, 10, sum.NoiseEvents)
	assert.Equal(t, 0, sum.MovementEvents)
	assert.Equal(t, "8.00 hours", sum.MonitoringDuration)
	assert.Equal(t, 8.0, sum.MonitoringHours)
	assert.Equal(t, 1.25, sum.SoundPeaksPerHour)
	assert.Equal(t, rec.Report.SleepScore, sum.SleepScore)
}

func TestSummaryRescoresMissingReport(t *testing.T) {
	rec := night(t, 1, 8, 10)
	want := rec.Report.SleepScore
	rec.Report = nil

	sum := Summarize("id", rec)
	assert.Equal(t, want, sum.SleepScore)

	rec.EndTime = time.Time{}
	sum = Summarize("id", rec)
	assert.Zero(t, sum.SleepScore)
	assert.Equal(t, "0", sum.MonitoringDuration)
}

func TestFileStoreAsSessionStore(t *testing.T) {
	s, _ := newTestStore(t)
	clock := []time.Time{
		time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC),
	}
	a := session.NewAnalyzer(s, session.WithClock(func() time.Time {
		now := clock[0]
		if len(clock) > 1 {
			clock = clock[1:]
		}
		return now
	}))

	require.NoError(t, a.StartMonitoring())
	require.NoError(t, a.Recorder().RecordSound(session.SoundPeak{Timestamp: time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)}))
	require.NoError(t, a.StopMonitoring())
	res, err := a.Persist(context.Background())
	require.NoError(t, err)

	loaded, err := s.Load(context.Background(), SessionID(res.Location))
	require.NoError(t, err)
	assert.Equal(t, res.Record, loaded)
}
