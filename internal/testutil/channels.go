// Package testutil provides helpers shared by the package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeouts.
const (
	// ShortTestTimeout is for operations expected to finish almost at once.
	ShortTestTimeout = 2 * time.Second

	// DefaultTestTimeout is the standard wait for goroutines to stop.
	DefaultTestTimeout = 5 * time.Second
)

// WaitForChannel waits for ch to be closed or signalled, failing the test
// with msg after timeout.
func WaitForChannel(t testing.TB, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}

// Receive returns the next value from ch, failing the test with msg after
// timeout.
func Receive[T any](t testing.TB, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
	var zero T
	return zero
}
