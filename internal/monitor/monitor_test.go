package monitor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/errors"
)

func fixedUsage(used map[string]float64) UsageFunc {
	return func(_ context.Context, path string) (*disk.UsageStat, error) {
		pct, ok := used[path]
		if !ok {
			return nil, errors.NewStd("no such file or directory")
		}
		return &disk.UsageStat{Path: path, Fstype: "ext4", UsedPercent: pct, Free: 1 << 30}, nil
	}
}

func TestDiskCheck(t *testing.T) {
	check := NewDiskCheck([]string{"/data", "/data/", "/config"}, 10).
		WithUsageFunc(fixedUsage(map[string]float64{"/data": 50, "/config": 95}))
	assert.Equal(t, []string{"/data", "/config"}, check.Paths())

	err := check.Check(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDiskUsage))
	assert.Contains(t, err.Error(), "/config")
	assert.NotContains(t, err.Error(), "/data")
}

func TestDiskCheckPasses(t *testing.T) {
	check := NewDiskCheck([]string{"/data"}, 10).
		WithUsageFunc(fixedUsage(map[string]float64{"/data": 89.5}))
	require.NoError(t, check.Check(context.Background()))
}

func TestDiskCheckThresholdDisabled(t *testing.T) {
	check := NewDiskCheck([]string{"/data", "/missing"}, 0).
		WithUsageFunc(fixedUsage(map[string]float64{"/data": 99.9}))

	err := check.Check(context.Background())
	require.Error(t, err, "unreadable paths still fail")
	assert.Contains(t, err.Error(), "no such file")
}

func TestDiskCheckRealFilesystem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewDiskCheck([]string{dir}, 0).Check(context.Background()))
}

func TestCriticalPaths(t *testing.T) {
	dir := t.TempDir()
	settings := &conf.Settings{}
	settings.Storage.LogDir = filepath.Join(dir, "logs")
	settings.Storage.Index = conf.IndexSettings{
		Enabled: true,
		Type:    conf.IndexSQLite,
		SQLite:  conf.SQLiteSettings{Path: filepath.Join(dir, "logs", "index.db")},
	}

	paths := CriticalPaths(settings)
	require.NotEmpty(t, paths)
	assert.Equal(t, filepath.Join(dir, "logs"), paths[0])
	assert.NotContains(t, paths[1:], filepath.Join(dir, "logs"), "index dir is deduplicated")
}

func TestDeduplicatePaths(t *testing.T) {
	assert.Equal(t, []string{"/a", "/b"}, deduplicatePaths([]string{"/a", "", "/a/", "/b", "."}))
}

func TestReadSystemInfo(t *testing.T) {
	info := ReadSystemInfo(context.Background())
	assert.NotEmpty(t, info.Arch)
	assert.NotEmpty(t, info.CPUModel)
	assert.Positive(t, info.LogicalCores)
	assert.Len(t, info.Fields(), 8)
}
