// Package privacy removes credentials from text that leaves the process,
// such as error telemetry and delivery failures logged for notification
// services whose URLs carry tokens.
package privacy

import (
	"regexp"

	"github.com/tphakala/sleepmon/internal/logger"
)

var urlPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"']+`)

// ScrubMessage redacts the userinfo and query of every URL in message, then
// any token or password assignments left in the text.
func ScrubMessage(message string) string {
	message = urlPattern.ReplaceAllStringFunc(message, logger.RedactURL)
	return logger.RedactSensitiveData(message)
}
