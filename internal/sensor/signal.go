// Package sensor provides the boolean sensor lines the detectors poll and
// the trigger sources that drive the controller.
package sensor

import (
	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
)

// GetLogger returns the sensor package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("sensor")
}

// ErrUnavailable reports that the underlying resource is gone. Workers stop
// polling a signal that returns it.
var ErrUnavailable = errors.NewStd("sensor unavailable")

// Signal is a pull-based boolean sensor line.
type Signal interface {
	Read() (bool, error)
	Close() error
}

// Opener acquires a Signal. Detectors open their source on every start and
// close it on stop.
type Opener func() (Signal, error)

// Func adapts a read function to Signal. Close is a no-op.
type Func func() (bool, error)

func (f Func) Read() (bool, error) { return f() }

func (f Func) Close() error { return nil }

// Constant returns an Opener for a signal that always reads v.
func Constant(v bool) Opener {
	return func() (Signal, error) {
		return Func(func() (bool, error) { return v, nil }), nil
	}
}

func unavailable(component string, err error) error {
	return errors.New(errors.Join(ErrUnavailable, err)).
		Component(component).
		Category(errors.CategorySensor).
		Build()
}
