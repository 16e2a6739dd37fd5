package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics counts push notification deliveries per service.
type NotificationMetrics struct {
	Deliveries *prometheus.CounterVec
	Latency    *prometheus.HistogramVec
}

// NewNotificationMetrics creates and registers the notification collectors.
func NewNotificationMetrics(registry prometheus.Registerer) (*NotificationMetrics, error) {
	m := &NotificationMetrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "notification_deliveries_total",
			Help:      "Push notification attempts by service and result",
		}, []string{LabelService, LabelResult}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "notification_delivery_seconds",
			Help:      "Time to deliver a push notification",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8),
		}, []string{LabelService}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// ObserveDelivery records one delivery attempt.
func (m *NotificationMetrics) ObserveDelivery(service string, seconds float64, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.Deliveries.WithLabelValues(service, result).Inc()
	m.Latency.WithLabelValues(service).Observe(seconds)
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Deliveries.Describe(ch)
	m.Latency.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Deliveries.Collect(ch)
	m.Latency.Collect(ch)
}
