// Package datastore persists session records as JSON files and keeps an
// optional SQL index of their reports.
package datastore

import (
	"context"
	"time"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/session"
)

// GetLogger returns the datastore package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.NewStd("session not found")

// Querier is the read side used by the dashboard and the CLI.
type Querier interface {
	// List returns all sessions, most recent first.
	List(ctx context.Context) ([]Summary, error)
	// Recent returns the last n sessions, oldest to newest.
	Recent(ctx context.Context, n int) ([]Summary, error)
	// Load returns the full record of a session.
	Load(ctx context.Context, id string) (*session.Record, error)
}

// Summary is the dashboard view of one session.
type Summary struct {
	ID                 string    `json:"id"`
	Date               string    `json:"date"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	SleepScore         float64   `json:"sleep_score"`
	NoiseEvents        int       `json:"noise_events"`
	MovementEvents     int       `json:"movement_events"`
	MonitoringDuration string    `json:"monitoring_duration"`
	MonitoringHours    float64   `json:"monitoring_hours"`
	TotalMotionHours   float64   `json:"total_motion_hours"`
	MotionPercentage   float64   `json:"motion_percentage"`
	SoundPeaksPerHour  float64   `json:"sound_peaks_per_hour"`
}

// Summarize builds the summary of a record. Records saved without a report
// are rescored from their events.
func Summarize(id string, rec *session.Record) Summary {
	s := Summary{
		ID:                 id,
		Date:               rec.Date(),
		StartTime:          rec.StartTime,
		EndTime:            rec.EndTime,
		NoiseEvents:        len(rec.SoundPeaks),
		MovementEvents:     len(rec.MotionEvents),
		MonitoringDuration: "0",
	}

	report := rec.Report
	if report == nil {
		var err error
		if report, err = rec.Rescore(); err != nil {
			return s
		}
	}

	s.SleepScore = report.SleepScore
	s.MonitoringHours = report.MonitoringDurationHours
	s.MonitoringDuration = formatHours(report.MonitoringDurationHours)
	s.TotalMotionHours = report.TotalMotionHours
	s.MotionPercentage = report.MotionPercentage
	s.SoundPeaksPerHour = report.SoundPeaksPerHour
	return s
}
