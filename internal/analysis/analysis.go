// Package analysis assembles the sleep monitor from its parts and runs it
// until shutdown.
package analysis

import (
	"github.com/tphakala/sleepmon/internal/logger"
)

// GetLogger returns the analysis package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("analysis")
}
