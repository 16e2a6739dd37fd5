package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics tracks completed sessions and their reports.
type SessionMetrics struct {
	Active          prometheus.Gauge
	Saved           prometheus.Counter
	SaveErrors      prometheus.Counter
	LastScore       prometheus.Gauge
	LastDuration    prometheus.Gauge
	LastMotionPct   prometheus.Gauge
	LastSoundRate   prometheus.Gauge
	LastSavedTime   prometheus.Gauge
	Score           prometheus.Histogram
	DurationHistory prometheus.Histogram
}

// NewSessionMetrics creates and registers the session collectors.
func NewSessionMetrics(registry prometheus.Registerer) (*SessionMetrics, error) {
	m := &SessionMetrics{
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "monitoring_active",
			Help:      "1 while a session is being monitored",
		}),
		Saved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_saved_total",
			Help:      "Sessions persisted with a report",
		}),
		SaveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "session_save_errors_total",
			Help:      "Failed attempts to persist a session",
		}),
		LastScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_sleep_score",
			Help:      "Sleep score of the most recent session",
		}),
		LastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_session_duration_hours",
			Help:      "Monitoring duration of the most recent session",
		}),
		LastMotionPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_motion_percentage",
			Help:      "Share of the most recent session spent in motion",
		}),
		LastSoundRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_sound_peaks_per_hour",
			Help:      "Sound peak rate of the most recent session",
		}),
		LastSavedTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_session_saved_time_seconds",
			Help:      "Unix time the most recent session was saved",
		}),
		Score: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "sleep_score",
			Help:      "Distribution of sleep scores",
			Buckets:   prometheus.LinearBuckets(15, 10, 9),
		}),
		DurationHistory: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "session_duration_hours",
			Help:      "Distribution of monitoring durations",
			Buckets:   []float64{0.5, 1, 2, 4, 6, 7, 8, 9, 10, 12},
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register session metrics: %w", err)
	}
	return m, nil
}

// SetActive records whether a session is running.
func (m *SessionMetrics) SetActive(active bool) {
	if active {
		m.Active.Set(1)
		return
	}
	m.Active.Set(0)
}

// ObserveReport records the report of a saved session.
func (m *SessionMetrics) ObserveReport(score, hours, motionPct, soundRate float64) {
	m.Saved.Inc()
	m.LastScore.Set(score)
	m.LastDuration.Set(hours)
	m.LastMotionPct.Set(motionPct)
	m.LastSoundRate.Set(soundRate)
	m.LastSavedTime.SetToCurrentTime()
	m.Score.Observe(score)
	m.DurationHistory.Observe(hours)
}

// IncrementSaveErrors counts a failed persist.
func (m *SessionMetrics) IncrementSaveErrors() {
	m.SaveErrors.Inc()
}

func (m *SessionMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Active, m.Saved, m.SaveErrors, m.LastScore, m.LastDuration,
		m.LastMotionPct, m.LastSoundRate, m.LastSavedTime, m.Score, m.DurationHistory,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *SessionMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *SessionMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}
