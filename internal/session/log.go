package session

import "github.com/tphakala/sleepmon/internal/logger"

// GetLogger returns the session package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("session")
}
