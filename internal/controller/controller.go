// Package controller drives monitoring sessions from a single toggle input.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/sleepmon/internal/display"
	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/session"
)

// GetLogger returns the controller package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("controller")
}

// State of the controller.
type State int32

const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

var (
	ErrAlreadyActive = errors.NewStd("monitoring already active")
	ErrNotActive     = errors.NewStd("monitoring not active")
	ErrClosed        = errors.NewStd("controller shut down")
)

// Analyzer is the session lifecycle the controller drives.
type Analyzer interface {
	StartMonitoring() error
	StopMonitoring() error
	Persist(ctx context.Context) (*session.Result, error)
	Status() session.Status
}

// Detector is a sensor worker started and stopped with each session.
type Detector interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
}

// ReportListener is told about every persisted session.
type ReportListener interface {
	OnReport(ctx context.Context, res *session.Result) error
}

// ReportListenerFunc adapts a function to ReportListener.
type ReportListenerFunc func(ctx context.Context, res *session.Result) error

func (f ReportListenerFunc) OnReport(ctx context.Context, res *session.Result) error {
	return f(ctx, res)
}

// Preflight checks run before a session starts. A failure is shown as a
// warning and the session starts anyway.
type Preflight func(ctx context.Context) error

// Config holds controller timing.
type Config struct {
	IdleDelay    time.Duration // idle prompt delay after a session ends
	MessagePause time.Duration // base pause after each status message
	DashboardURL string        // announced after a report when set
}

// Option configures a Controller.
type Option func(*Controller)

// WithDetectors sets the detectors in start order.
func WithDetectors(d ...Detector) Option {
	return func(c *Controller) { c.detectors = append(c.detectors, d...) }
}

// WithReportListeners adds report listeners.
func WithReportListeners(l ...ReportListener) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, l...) }
}

// WithPreflight sets the pre-start check.
func WithPreflight(p Preflight) Option {
	return func(c *Controller) { c.preflight = p }
}

// WithLogger replaces the package logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller is the Idle/Active state machine behind the toggle button.
// Toggle, Start, Stop and Shutdown are serialized.
type Controller struct {
	mu        sync.Mutex
	state     atomic.Int32
	closed    bool
	analyzer  Analyzer
	detectors []Detector
	listeners []ReportListener
	preflight Preflight
	display   display.Display
	idle      *IdleTimer
	cfg       Config
	last      atomic.Pointer[session.Result]
	log       logger.Logger
}

// New returns an idle controller.
func New(analyzer Analyzer, disp display.Display, cfg Config, opts ...Option) *Controller {
	if disp == nil {
		disp = display.Nop{}
	}
	c := &Controller{
		analyzer: analyzer,
		display:  disp,
		cfg:      cfg,
		log:      GetLogger(),
	}
	c.idle = NewIdleTimer(cfg.IdleDelay, c.ShowIdle)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state without waiting for a transition.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// LastResult returns the most recently persisted session, or nil.
func (c *Controller) LastResult() *session.Result {
	return c.last.Load()
}

// ShowIdle shows the idle prompt.
func (c *Controller) ShowIdle() {
	c.display.Show("Press Button", "to Start/Stop")
}

// Toggle starts monitoring when idle and stops it when active.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return stateError(ErrClosed, "toggle")
	}
	if c.State() == StateActive {
		return c.stopLocked(ctx)
	}
	return c.startLocked(ctx)
}

// Start begins a session.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return stateError(ErrClosed, "start")
	}
	return c.startLocked(ctx)
}

// Stop ends the session, persists it and notifies report listeners.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(ctx)
}

// Shutdown stops an active session, retries saving a session whose save
// failed, and clears the display. Later toggles fail with ErrClosed.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	switch {
	case c.State() == StateActive:
		err = c.stopLocked(ctx)
	case !c.analyzer.Status().Persisted:
		err = c.saveLocked(ctx)
	}
	// a stop that finished before the lock was taken may have armed it
	c.idle.Cancel()

	c.show(ctx, 2, "System", "Shutting Down")
	c.display.Clear()
	c.log.Info("controller shut down")
	return err
}

func (c *Controller) startLocked(ctx context.Context) error {
	if c.State() == StateActive {
		c.show(ctx, 2, "Already", "Monitoring")
		c.display.Show("Monitoring", "Active")
		return stateError(ErrAlreadyActive, "start")
	}

	c.idle.Cancel()

	if !c.analyzer.Status().Persisted {
		c.log.Warn("saving previous session before starting a new one")
		if err := c.saveLocked(ctx); err != nil {
			c.idle.Schedule()
			return err
		}
	}

	c.show(ctx, 1, "Starting", "Monitoring...")

	if c.preflight != nil {
		if err := c.preflight(ctx); err != nil {
			c.log.Warn("preflight check failed, starting anyway", logger.Error(err))
			c.show(ctx, 1, "Warning:", "Check Storage")
		}
	}

	if err := c.analyzer.StartMonitoring(); err != nil {
		c.log.Error("failed to start session", logger.Error(err))
		c.show(ctx, 1, "Error:", "Start Failed")
		c.idle.Schedule()
		return err
	}
	c.state.Store(int32(StateActive))

	// detectors outlive the triggering request
	runCtx := context.WithoutCancel(ctx)
	for _, d := range c.detectors {
		label := monitorLabel(d.Name())
		c.display.Show("Initializing", label)
		if err := d.Start(runCtx); err != nil {
			c.log.Error("detector unavailable, continuing without it",
				logger.String("detector", d.Name()),
				logger.Error(err))
			c.show(ctx, 1, "Sensor Error:", label)
			continue
		}
		c.pause(ctx, 1)
	}

	c.display.Show("Monitoring", "Active")
	c.log.Info("monitoring active", logger.Int("detectors", len(c.detectors)))
	return nil
}

func (c *Controller) stopLocked(ctx context.Context) error {
	if c.State() != StateActive {
		c.show(ctx, 2, "Not Currently", "Monitoring")
		if !c.closed {
			c.ShowIdle()
		}
		return stateError(ErrNotActive, "stop")
	}

	c.show(ctx, 1, "Stopping", "Monitoring...")

	for _, d := range c.detectors {
		d.Stop()
	}

	if err := c.analyzer.StopMonitoring(); err != nil {
		c.log.Warn("session was not running", logger.Error(err))
	}

	defer func() {
		c.state.Store(int32(StateIdle))
		if !c.closed {
			c.idle.Schedule()
		}
	}()

	return c.saveLocked(ctx)
}

// saveLocked persists the stopped session, shows its score and notifies the
// report listeners. A failed save leaves the session with the analyzer for
// the next attempt.
func (c *Controller) saveLocked(ctx context.Context) error {
	c.display.Show("Saving Log", "Please Wait...")
	res, err := c.analyzer.Persist(ctx)
	c.pause(ctx, 1)
	if err != nil {
		c.log.Error("failed to save session", logger.Error(err))
		c.show(ctx, 1, "Error:", "Save Failed")
		return err
	}
	c.last.Store(res)

	c.show(ctx, 2, "Generating", "Sleep Report")

	if res.Record == nil || res.Record.Report == nil {
		c.show(ctx, 1, "Error:", "No Valid Report")
	} else {
		c.show(ctx, 3, "Sleep Score:", fmt.Sprintf("%.2f", res.Record.Report.SleepScore))
	}

	c.notify(ctx, res)

	if c.cfg.DashboardURL != "" {
		c.show(ctx, 2, "Report Ready", c.cfg.DashboardURL)
	}

	c.log.Info("monitoring stopped and report saved",
		logger.String("session_id", res.SessionID),
		logger.String("location", res.Location))
	return nil
}

func (c *Controller) notify(ctx context.Context, res *session.Result) {
	for _, l := range c.listeners {
		if err := l.OnReport(ctx, res); err != nil {
			c.log.Warn("report listener failed",
				logger.String("listener", fmt.Sprintf("%T", l)),
				logger.Error(err))
		}
	}
}

// show displays a message and holds it for n message pauses.
func (c *Controller) show(ctx context.Context, n int, line1, line2 string) {
	c.display.Show(line1, line2)
	c.pause(ctx, n)
}

func (c *Controller) pause(ctx context.Context, n int) {
	d := time.Duration(n) * c.cfg.MessagePause
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func monitorLabel(name string) string {
	if name == "" {
		return "Monitor"
	}
	return strings.ToUpper(name[:1]) + name[1:] + " Monitor"
}

func stateError(err error, op string) error {
	return errors.New(err).
		Component("controller").
		Category(errors.CategoryState).
		Context("operation", op).
		Build()
}
