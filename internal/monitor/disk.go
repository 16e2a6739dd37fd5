// Package monitor checks host resources before and during monitoring.
package monitor

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
)

// GetLogger returns the monitor package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("monitor")
}

const bytesPerMB = 1024 * 1024

// UsageFunc reports disk usage of the filesystem holding path.
type UsageFunc func(ctx context.Context, path string) (*disk.UsageStat, error)

// DiskCheck verifies that the filesystems under paths have enough free space
// to save a session.
type DiskCheck struct {
	paths          []string
	minFreePercent float64
	usage          UsageFunc
	log            logger.Logger
}

// NewDiskCheck returns a check requiring minFreePercent free space on every
// path. A threshold of zero or less only fails on unreadable paths.
func NewDiskCheck(paths []string, minFreePercent float64) *DiskCheck {
	return &DiskCheck{
		paths:          deduplicatePaths(paths),
		minFreePercent: minFreePercent,
		usage:          disk.UsageWithContext,
		log:            GetLogger(),
	}
}

// WithUsageFunc replaces the gopsutil usage call.
func (d *DiskCheck) WithUsageFunc(fn UsageFunc) *DiskCheck {
	d.usage = fn
	return d
}

// Paths returns the checked paths.
func (d *DiskCheck) Paths() []string {
	return d.paths
}

// Check returns a DiskUsage error for the first path below the threshold.
func (d *DiskCheck) Check(ctx context.Context) error {
	var errs []error
	for _, path := range d.paths {
		usage, err := d.usage(ctx, path)
		if err != nil {
			errs = append(errs, errors.New(err).
				Component("monitor").
				Category(errors.CategoryDiskUsage).
				Context("path", path).
				Build())
			continue
		}

		free := 100 - usage.UsedPercent
		d.log.Debug("disk usage",
			logger.String("path", path),
			logger.String("filesystem", usage.Fstype),
			logger.Uint64("free_mb", usage.Free/bytesPerMB),
			logger.String("free_percent", fmt.Sprintf("%.2f%%", free)))

		if d.minFreePercent > 0 && free < d.minFreePercent {
			errs = append(errs, errors.New(fmt.Errorf("only %.1f%% free on %s", free, path)).
				Component("monitor").
				Category(errors.CategoryDiskUsage).
				Context("path", path).
				Context("free_percent", free).
				Context("min_free_percent", d.minFreePercent).
				Build())
		}
	}
	return errors.Join(errs...)
}
