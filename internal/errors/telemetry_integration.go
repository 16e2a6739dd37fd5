// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
	capture func(*sentry.Event)
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{
		enabled: enabled,
		capture: func(e *sentry.Event) { sentry.CaptureEvent(e) },
	}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry with URL query scrubbing
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	sr.capture(buildSentryEvent(ee))
	ee.MarkReported()
}

// buildSentryEvent converts an enhanced error into a Sentry event. Grouping
// uses the generated title, component and category.
func buildSentryEvent(ee *EnhancedError) *sentry.Event {
	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	title := generateErrorTitle(ee)

	event := sentry.NewEvent()
	event.Message = message
	event.Level = getErrorLevel(ee.Category)
	event.Fingerprint = []string{title, ee.GetComponent(), string(ee.Category)}
	event.Tags = map[string]string{
		"error_title": title,
		"component":   ee.GetComponent(),
		"category":    string(ee.Category),
		"priority":    ee.GetPriority(),
		"error_type":  fmt.Sprintf("%T", ee.Err),
	}
	for key, value := range ee.GetContext() {
		if s, ok := value.(string); ok {
			value = scrubMessage(s)
		}
		event.Contexts[key] = sentry.Context{"value": value}
	}
	event.Exception = []sentry.Exception{{Type: title, Value: message}}
	return event
}

// generateErrorTitle creates a readable title from component, category and operation
func generateErrorTitle(ee *EnhancedError) string {
	var parts []string

	if c := ee.GetComponent(); c != ComponentUnknown {
		parts = append(parts, titleCase(c))
	}
	parts = append(parts, formatCategoryForTitle(ee.Category))

	if op, ok := ee.GetContext()["operation"].(string); ok && op != "" {
		words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(op))
		for i, w := range words {
			words[i] = titleCase(w)
		}
		parts = append(parts, strings.Join(words, " "))
	}

	return strings.Join(parts, " ")
}

func formatCategoryForTitle(category ErrorCategory) string {
	switch category {
	case CategoryValidation:
		return "Validation Error"
	case CategoryFileIO:
		return "File I/O Error"
	case CategoryDatabase:
		return "Database Error"
	case CategoryNetwork:
		return "Network Error"
	case CategorySensor:
		return "Sensor Error"
	case CategoryConfiguration:
		return "Configuration Error"
	case CategorySystem:
		return "System Error"
	default:
		return string(category)
	}
}

// titleCase capitalizes the first letter of a string
func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// getErrorLevel returns appropriate Sentry level based on category
func getErrorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryMQTTConnect, CategoryMQTTPublish, CategoryNotification:
		return sentry.LevelWarning // Often transient
	case CategorySensor, CategoryAudioSource, CategoryHTTP:
		return sentry.LevelWarning
	case CategoryState:
		return sentry.LevelInfo
	default:
		return sentry.LevelError
	}
}

var (
	telemetryMu             sync.RWMutex
	globalTelemetryReporter TelemetryReporter
)

// SetTelemetryReporter sets the global telemetry reporter. Passing nil
// disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()
	globalTelemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	telemetryMu.RLock()
	defer telemetryMu.RUnlock()
	return globalTelemetryReporter
}

func reportToTelemetry(ee *EnhancedError) {
	if r := GetTelemetryReporter(); r != nil && r.IsEnabled() {
		r.ReportError(ee)
	}
}

var (
	urlQueryRegex = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	credRegex     = regexp.MustCompile(`(?i)(password|passwd|token|api[_-]?key)[=:]\S+`)
	userinfoRegex = regexp.MustCompile(`(\w+://)[^/@\s]+@`)
)

// scrubMessage removes URL queries, embedded credentials and key=value secrets.
func scrubMessage(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = userinfoRegex.ReplaceAllString(scrubbed, "$1[REDACTED]@")
	return credRegex.ReplaceAllString(scrubbed, "$1=[REDACTED]")
}
