package session

import "github.com/tphakala/sleepmon/internal/errors"

// Sentinels returned wrapped in an EnhancedError; match them with errors.Is.
var (
	ErrAlreadyMonitoring = errors.NewStd("already monitoring")
	ErrNotMonitoring     = errors.NewStd("not monitoring")
	ErrStillMonitoring   = errors.NewStd("session is still being monitored")
	ErrSessionClosed     = errors.NewStd("session is not accepting events")
	ErrScoreUnavailable  = errors.NewStd("sleep score unavailable: session timestamps missing")
	ErrNoData            = errors.NewStd("no monitoring data available")
	ErrUnsaved           = errors.NewStd("previous session has not been saved")
)

func stateError(err error, op string) error {
	return errors.New(err).
		Component("session").
		Category(errors.CategoryState).
		Context("operation", op).
		Build()
}
