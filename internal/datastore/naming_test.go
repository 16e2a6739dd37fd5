package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	start := time.Date(2024, 1, 1, 22, 5, 9, 0, time.UTC)
	end := time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)

	assert.Equal(t, "sleep_log_20240101_220509_to_20240102_060000.json", FileName(start, end, 0))
	assert.Equal(t, "sleep_log_20240101_220509_to_20240102_060000-2.json", FileName(start, end, 2))
}

func TestParseFileName(t *testing.T) {
	p, ok := ParseFileName("/logs/sleep_log_20240101_220509_to_20240102_060000-3.json", time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 22, 5, 9, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC), p.End)
	assert.Equal(t, 3, p.Suffix)

	for _, bad := range []string{
		"sleep_log_20240101_220509.json",
		"sleep_log_20241301_220509_to_20240102_060000.json",
		"sleep_log_20240101_220509_to_20240102_060000.json.bak",
		".sleep_log_123.tmp",
		"notes.txt",
	} {
		_, ok := ParseFileName(bad, time.UTC)
		assert.False(t, ok, bad)
	}
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, "sleep_log_20240101_220509_to_20240102_060000",
		SessionID("/var/lib/sleepmon/sleep_log_20240101_220509_to_20240102_060000.json"))
	assert.Equal(t, "abc", SessionID("abc"))
}
