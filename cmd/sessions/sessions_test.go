package sessions

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/datastore"
	"github.com/tphakala/sleepmon/internal/session"
)

func seed(t *testing.T, dir string, days ...int) []string {
	t.Helper()
	store, err := datastore.NewFileStore(afero.NewOsFs(), dir)
	require.NoError(t, err)

	var ids []string
	for _, day := range days {
		start := time.Date(2024, 3, day, 22, 30, 0, 0, time.Local)
		rec := &session.Record{
			StartTime:    start,
			EndTime:      start.Add(8 * time.Hour),
			MotionEvents: []session.MotionEvent{},
			SoundPeaks:   []session.SoundPeak{{Timestamp: start.Add(time.Hour)}, {Timestamp: start.Add(2 * time.Hour)}},
		}
		rec.Report, err = rec.Rescore()
		require.NoError(t, err)

		path, err := store.Save(t.Context(), rec)
		require.NoError(t, err)
		ids = append(ids, datastore.SessionID(path))
	}
	return ids
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := Command(&conf.Settings{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestListMostRecentFirst(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, 1, 2, 3)

	out, err := execute(t, "list", "--logdir", dir, "--json")
	require.NoError(t, err)

	var list []datastore.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 3)
	assert.Equal(t, "2024-03-03", list[0].Date)
	assert.Equal(t, "2024-03-01", list[2].Date)
}

func TestListLimitAndTable(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, 1, 2, 3)

	out, err := execute(t, "list", "--logdir", dir, "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "SCORE")
	assert.Contains(t, out, "2024-03-03")
	assert.NotContains(t, out, "2024-03-01")
	assert.Contains(t, out, "8.00 hours")
}

func TestRecentOldestFirst(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, 1, 2, 3, 4)

	out, err := execute(t, "recent", "2", "--logdir", dir, "--json")
	require.NoError(t, err)

	var list []datastore.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "2024-03-03", list[0].Date)
	assert.Equal(t, "2024-03-04", list[1].Date)
}

func TestRecentRejectsBadCount(t *testing.T) {
	_, err := execute(t, "recent", "many", "--logdir", t.TempDir())
	require.Error(t, err)
}

func TestEmptyDirectory(t *testing.T) {
	out, err := execute(t, "list", "--logdir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found")

	out, err = execute(t, "recent", "--logdir", t.TempDir(), "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestShow(t *testing.T) {
	dir := t.TempDir()
	ids := seed(t, dir, 5)

	out, err := execute(t, "show", ids[0], "--logdir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Sleep report 2024-03-05")
	assert.Contains(t, out, "Monitored: 8.00 hours")
	assert.Contains(t, out, "Sound peaks: 2 (0.25 per hour)")

	out, err = execute(t, "show", ids[0], "--logdir", dir, "--json")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "sleep_report")

	_, err = execute(t, "show", "sleep_log_20200101_000000_to_20200101_080000", "--logdir", dir)
	require.Error(t, err)
}
