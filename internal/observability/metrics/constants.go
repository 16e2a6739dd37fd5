// Package metrics defines the Prometheus collectors of sleepmon components.
package metrics

import "time"

// Namespace prefixes every metric name.
const Namespace = "sleepmon"

// ShutdownTimeout bounds the graceful shutdown of the metrics endpoint.
const ShutdownTimeout = 5 * time.Second

// Label names.
const (
	LabelDetector = "detector"
	LabelService  = "service"
	LabelResult   = "result"
)

// Label values of LabelResult.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)
