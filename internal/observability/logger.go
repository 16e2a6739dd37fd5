// Package observability exposes sleepmon metrics in the Prometheus format.
package observability

import "github.com/tphakala/sleepmon/internal/logger"

// Package-level cached logger instance.
var log = logger.Global().Module("telemetry")
