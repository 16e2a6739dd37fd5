// Package telemetry wires opt-in Sentry error reporting.
package telemetry

import (
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/privacy"
)

// GetLogger returns the telemetry package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

const flushTimeout = 2 * time.Second

// InitSentry initializes the Sentry SDK when enabled and routes enhanced
// errors to it. The returned function flushes pending events and is safe to
// call when Sentry is disabled.
func InitSentry(settings *conf.Settings, release string) (func(), error) {
	if !settings.Sentry.Enabled {
		GetLogger().Debug("sentry telemetry is disabled (opt-in required)")
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		Release:          release,
		SampleRate:       1.0,
		AttachStacktrace: false,
		SendDefaultPII:   false,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return func() {}, errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("go_version", runtime.Version())
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	GetLogger().Info("sentry telemetry enabled")

	return func() {
		errors.SetTelemetryReporter(nil)
		sentry.Flush(flushTimeout)
	}, nil
}

// scrubEvent drops host identifiers and credentials before an event leaves
// the machine.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.ServerName = ""
	event.User = sentry.User{}
	event.Request = nil
	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}
	return event
}
