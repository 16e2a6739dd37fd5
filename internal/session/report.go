package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SleepReport summarizes a completed session. All float fields are rounded
// to two decimals.
type SleepReport struct {
	SleepScore              float64
	MonitoringDurationHours float64
	MotionEventCount        int
	TotalMotionHours        float64
	MotionPercentage        float64
	SoundPeakCount          int
	SoundPeaksPerHour       float64
}

// BuildReport derives the report of a stopped session from a snapshot of
// its events.
func BuildReport(s *MonitoringSession, snap Snapshot) (*SleepReport, error) {
	if s == nil || s.StartTime.IsZero() || !s.Ended() {
		return nil, ErrScoreUnavailable
	}

	stats := Stats{
		TotalHours:  s.Duration().Hours(),
		MotionHours: snap.TotalMotion().Hours(),
		SoundPeaks:  len(snap.SoundPeaks),
	}

	return &SleepReport{
		SleepScore:              CalculateScore(stats),
		MonitoringDurationHours: Round2(stats.TotalHours),
		MotionEventCount:        len(snap.MotionEvents),
		TotalMotionHours:        Round2(stats.MotionHours),
		MotionPercentage:        Round2(stats.MotionPercentage()),
		SoundPeakCount:          stats.SoundPeaks,
		SoundPeaksPerHour:       Round2(stats.SoundFrequency()),
	}, nil
}

const (
	hoursSuffix   = " hours"
	percentSuffix = "%"
)

// reportJSON is the on-disk report layout shared with the dashboard:
// durations as "8.00 hours", percentage as "6.25%".
type reportJSON struct {
	SleepScore          float64 `json:"sleep_score"`
	MonitoringDuration  string  `json:"monitoring_duration"`
	MotionEvents        int     `json:"motion_events"`
	TotalMotionDuration string  `json:"total_motion_duration"`
	MotionPercentage    string  `json:"motion_percentage"`
	SoundPeaks          int     `json:"sound_peaks"`
	SoundPeaksPerHour   float64 `json:"sound_peaks_per_hour"`
}

// MarshalJSON writes the dashboard report layout.
func (r SleepReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{
		SleepScore:          r.SleepScore,
		MonitoringDuration:  fmt.Sprintf("%.2f%s", r.MonitoringDurationHours, hoursSuffix),
		MotionEvents:        r.MotionEventCount,
		TotalMotionDuration: fmt.Sprintf("%.2f%s", r.TotalMotionHours, hoursSuffix),
		MotionPercentage:    fmt.Sprintf("%.2f%s", r.MotionPercentage, percentSuffix),
		SoundPeaks:          r.SoundPeakCount,
		SoundPeaksPerHour:   r.SoundPeaksPerHour,
	})
}

// UnmarshalJSON parses the dashboard report layout.
func (r *SleepReport) UnmarshalJSON(data []byte) error {
	var raw reportJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	duration, err := parseSuffixed(raw.MonitoringDuration, hoursSuffix)
	if err != nil {
		return fmt.Errorf("monitoring_duration: %w", err)
	}
	motion, err := parseSuffixed(raw.TotalMotionDuration, hoursSuffix)
	if err != nil {
		return fmt.Errorf("total_motion_duration: %w", err)
	}
	pct, err := parseSuffixed(raw.MotionPercentage, percentSuffix)
	if err != nil {
		return fmt.Errorf("motion_percentage: %w", err)
	}

	*r = SleepReport{
		SleepScore:              raw.SleepScore,
		MonitoringDurationHours: duration,
		MotionEventCount:        raw.MotionEvents,
		TotalMotionHours:        motion,
		MotionPercentage:        pct,
		SoundPeakCount:          raw.SoundPeaks,
		SoundPeaksPerHour:       raw.SoundPeaksPerHour,
	}
	return nil
}

func parseSuffixed(s, suffix string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, suffix)), 64)
}
