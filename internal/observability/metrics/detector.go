package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectorMetrics counts detector activity per detector name. It satisfies
// the detector observer interface.
type DetectorMetrics struct {
	RawTriggers *prometheus.CounterVec
	ReadErrors  *prometheus.CounterVec
	Events      *prometheus.CounterVec
}

// NewDetectorMetrics creates and registers the detector collectors.
func NewDetectorMetrics(registry prometheus.Registerer) (*DetectorMetrics, error) {
	m := &DetectorMetrics{
		RawTriggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "detector_raw_triggers_total",
			Help:      "Raw sensor samples that read as present",
		}, []string{LabelDetector}),
		ReadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "detector_read_errors_total",
			Help:      "Failed sensor reads",
		}, []string{LabelDetector}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "detector_events_total",
			Help:      "Events recorded into the session (sound peaks, motion intervals)",
		}, []string{LabelDetector}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detector metrics: %w", err)
	}
	return m, nil
}

// RawTrigger counts one present sample.
func (m *DetectorMetrics) RawTrigger(detector string) {
	m.RawTriggers.WithLabelValues(detector).Inc()
}

// ReadError counts one failed read.
func (m *DetectorMetrics) ReadError(detector string) {
	m.ReadErrors.WithLabelValues(detector).Inc()
}

// Event counts one recorded event.
func (m *DetectorMetrics) Event(detector string) {
	m.Events.WithLabelValues(detector).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *DetectorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RawTriggers.Describe(ch)
	m.ReadErrors.Describe(ch)
	m.Events.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DetectorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RawTriggers.Collect(ch)
	m.ReadErrors.Collect(ch)
	m.Events.Collect(ch)
}
