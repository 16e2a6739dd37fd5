// Package detector turns polled sensor signals into session events.
package detector

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/sensor"
	"github.com/tphakala/sleepmon/internal/session"
)

const (
	// DefaultMaxReadErrors is the number of consecutive failed reads after
	// which a worker gives up on its sensor.
	DefaultMaxReadErrors = 50

	joinWarnPolls   = 10
	minJoinWarnWait = time.Second
)

// ErrRunning is returned when starting a detector that is already running.
var ErrRunning = errors.NewStd("detector already running")

// GetLogger returns the detector package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("detector")
}

// Observer receives detector activity. Calls are made from the worker
// goroutine and must not block.
type Observer interface {
	RawTrigger(detector string)
	ReadError(detector string)
	Event(detector string)
}

type nopObserver struct{}

func (nopObserver) RawTrigger(string) {}
func (nopObserver) ReadError(string)  {}
func (nopObserver) Event(string)      {}

// Option configures a detector.
type Option func(*worker)

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *worker) { w.now = now }
}

// WithObserver attaches an activity observer.
func WithObserver(o Observer) Option {
	return func(w *worker) {
		if o != nil {
			w.observer = o
		}
	}
}

// WithLogger replaces the package logger.
func WithLogger(l logger.Logger) Option {
	return func(w *worker) { w.log = l }
}

// WithMaxReadErrors sets the consecutive read failure limit.
func WithMaxReadErrors(n int) Option {
	return func(w *worker) {
		if n > 0 {
			w.maxErrors = n
		}
	}
}

// worker polls a sensor on its own goroutine. The sensor is opened on start
// and released on stop, after the goroutine has exited.
type worker struct {
	name      string
	open      sensor.Opener
	rec       session.Recorder
	poll      time.Duration
	maxErrors int
	now       func() time.Time
	observer  Observer
	log       logger.Logger

	// hooks; begin runs before the goroutine starts, finish after it exits
	begin  func(now time.Time)
	sample func(present bool, now time.Time)
	finish func(now time.Time)

	mu     sync.Mutex
	source sensor.Signal
	cancel context.CancelFunc
	done   chan struct{}
}

func newWorker(name string, open sensor.Opener, rec session.Recorder, poll time.Duration, opts []Option) *worker {
	w := &worker{
		name:      name,
		open:      open,
		rec:       rec,
		poll:      poll,
		maxErrors: DefaultMaxReadErrors,
		now:       time.Now,
		observer:  nopObserver{},
		log:       GetLogger().With(logger.String("detector", name)),
		begin:     func(time.Time) {},
		finish:    func(time.Time) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name identifies the detector in logs and metrics.
func (w *worker) Name() string {
	return w.name
}

// Running reports whether the polling goroutine has been started and not
// yet stopped. A worker that gave up on its sensor still counts as running
// until Stop.
func (w *worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done != nil
}

// Start opens the sensor and starts polling it.
func (w *worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done != nil {
		return errors.New(ErrRunning).
			Component("detector").
			Category(errors.CategoryState).
			Context("detector", w.name).
			Build()
	}

	started := time.Now()
	src, err := w.open()
	if err != nil {
		return errors.New(err).
			Component("detector").
			Category(errors.CategorySensor).
			Context("detector", w.name).
			Timing("open_sensor", time.Since(started)).
			Build()
	}

	w.source = src
	w.begin(w.now())

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(runCtx, src, w.done)

	w.log.Info("detector started", logger.Duration("poll_interval", w.poll))
	return nil
}

// Stop cancels the polling goroutine, waits for it to exit, flushes pending
// state and releases the sensor. Stopping an idle detector does nothing.
func (w *worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done == nil {
		return
	}

	w.cancel()
	w.join()
	w.finish(w.now())

	if err := w.source.Close(); err != nil {
		w.log.Warn("failed to release sensor", logger.Error(err))
	}
	w.source, w.cancel, w.done = nil, nil, nil

	w.log.Info("detector stopped")
}

func (w *worker) join() {
	wait := max(joinWarnPolls*w.poll, minJoinWarnWait)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-w.done:
		return
	case <-timer.C:
		w.log.Warn("detector is slow to stop, still waiting", logger.Duration("waited", wait))
	}
	<-w.done
}

func (w *worker) run(ctx context.Context, src sensor.Signal, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("detector panicked, polling stopped",
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
		}
	}()

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		present, err := src.Read()
		if err != nil {
			w.observer.ReadError(w.name)
			if errors.Is(err, sensor.ErrUnavailable) {
				w.log.Error("sensor unavailable, polling stopped", logger.Error(err))
				return
			}
			failures++
			if failures >= w.maxErrors {
				w.log.Error("too many consecutive sensor read failures, polling stopped",
					logger.Int("failures", failures),
					logger.Error(err))
				return
			}
			w.log.Debug("sensor read failed", logger.Int("failures", failures), logger.Error(err))
			continue
		}
		failures = 0

		if present {
			w.observer.RawTrigger(w.name)
		}
		w.sample(present, w.now())
	}
}

// recordFailed logs a rejected append. Appends racing a stop are expected.
func (w *worker) recordFailed(kind string, err error) {
	if errors.Is(err, session.ErrSessionClosed) {
		w.log.Debug("event dropped, session closed", logger.String("event", kind))
		return
	}
	w.log.Warn("failed to record event", logger.String("event", kind), logger.Error(err))
}
