package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
)

// State is the lifecycle state of the Analyzer.
type State int

const (
	StateIdle State = iota
	StateMonitoring
)

func (s State) String() string {
	if s == StateMonitoring {
		return "monitoring"
	}
	return "idle"
}

// Status is a read-only view of the analyzer for status displays.
type Status struct {
	State        State
	SessionID    string
	StartTime    time.Time
	EndTime      time.Time
	MotionEvents int
	SoundPeaks   int
	Persisted    bool // false while a stopped session awaits persistence
}

// Analyzer owns the monitoring session and its event sink. It moves between
// Idle and Monitoring, scores stopped sessions and persists them.
type Analyzer struct {
	mu      sync.Mutex
	state   State
	session *MonitoringSession
	report  *SleepReport
	sink    *EventSink
	store   Store
	now     func() time.Time
	newID   func() string
	log     logger.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithIDGenerator replaces the uuid session ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(a *Analyzer) { a.newID = fn }
}

// WithLogger replaces the package logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Analyzer) { a.log = l }
}

// NewAnalyzer returns an idle analyzer that persists through store.
func NewAnalyzer(store Store, opts ...Option) *Analyzer {
	a := &Analyzer{
		state: StateIdle,
		sink:  NewEventSink(),
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
		log:   GetLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recorder returns the append-only handle detectors write through. Appends
// fail with ErrSessionClosed outside a running session.
func (a *Analyzer) Recorder() Recorder {
	return sinkRecorder{sink: a.sink}
}

// State returns the current lifecycle state.
func (a *Analyzer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Status returns the current session details.
func (a *Analyzer) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := Status{State: a.state, Persisted: a.session == nil}
	if a.session != nil {
		st.SessionID = a.session.ID
		st.StartTime = a.session.StartTime
		st.EndTime = a.session.EndTime
		st.MotionEvents, st.SoundPeaks = a.sink.Counts()
	}
	return st
}

// StartMonitoring begins a new session. A stopped session that was never
// persisted blocks it with ErrUnsaved until Persist succeeds.
func (a *Analyzer) StartMonitoring() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateMonitoring {
		return stateError(ErrAlreadyMonitoring, "start_monitoring")
	}
	if a.session != nil {
		return errors.New(ErrUnsaved).
			Component("session").
			Category(errors.CategoryState).
			Context("operation", "start_monitoring").
			Context("session_id", a.session.ID).
			Build()
	}

	a.sink.Clear()
	a.session = &MonitoringSession{ID: a.newID(), StartTime: a.now()}
	a.report = nil
	a.sink.setOpen(true)
	a.state = StateMonitoring

	a.log.Info("monitoring started",
		logger.String("session_id", a.session.ID),
		logger.Time("start_time", a.session.StartTime))
	return nil
}

// StopMonitoring ends the running session. Events appended afterwards are rejected.
func (a *Analyzer) StopMonitoring() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateMonitoring {
		return stateError(ErrNotMonitoring, "stop_monitoring")
	}

	a.sink.setOpen(false)
	a.session.EndTime = a.now()
	a.state = StateIdle

	motion, sound := a.sink.Counts()
	a.log.Info("monitoring stopped",
		logger.String("session_id", a.session.ID),
		logger.Duration("duration", a.session.Duration()),
		logger.Int("motion_events", motion),
		logger.Int("sound_peaks", sound))
	return nil
}

// CalculateSleepScore returns the score of the stopped session, or
// ErrScoreUnavailable when a timestamp is missing.
func (a *Analyzer) CalculateSleepScore() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil || !a.session.Ended() {
		return 0, errors.New(ErrScoreUnavailable).
			Component("session").
			Category(errors.CategoryScoring).
			Build()
	}

	report, err := a.reportLocked()
	if err != nil {
		return 0, err
	}
	return report.SleepScore, nil
}

// GenerateReport returns the report of the stopped session. It is computed
// once and reused. ErrNoData means no session exists.
func (a *Analyzer) GenerateReport() (*SleepReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return nil, errors.New(ErrNoData).
			Component("session").
			Category(errors.CategoryScoring).
			Build()
	}

	report, err := a.reportLocked()
	if err != nil {
		return nil, err
	}
	copied := *report
	return &copied, nil
}

func (a *Analyzer) reportLocked() (*SleepReport, error) {
	if a.report != nil {
		return a.report, nil
	}

	report, err := BuildReport(a.session, a.sink.Snapshot())
	if err != nil {
		return nil, errors.New(err).
			Component("session").
			Category(errors.CategoryScoring).
			Context("session_id", a.session.ID).
			Build()
	}
	a.report = report
	return report, nil
}

// Persist writes the stopped session with its events and report to the
// store and releases it. On failure the session is kept for the next
// Persist.
func (a *Analyzer) Persist(ctx context.Context) (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateMonitoring {
		return nil, stateError(ErrStillMonitoring, "persist")
	}
	if a.session == nil {
		return nil, stateError(ErrNoData, "persist")
	}

	report, err := a.reportLocked()
	if err != nil {
		return nil, err
	}

	snap := a.sink.Snapshot()
	rec := &Record{
		StartTime:    a.session.StartTime,
		EndTime:      a.session.EndTime,
		MotionEvents: snap.MotionEvents,
		SoundPeaks:   snap.SoundPeaks,
		Report:       report,
	}
	if rec.MotionEvents == nil {
		rec.MotionEvents = []MotionEvent{}
	}
	if rec.SoundPeaks == nil {
		rec.SoundPeaks = []SoundPeak{}
	}

	started := time.Now()
	location, err := a.store.Save(ctx, rec)
	if err != nil {
		return nil, errors.New(err).
			Component("session").
			Category(errors.CategoryFileIO).
			Context("session_id", a.session.ID).
			Timing("persist", time.Since(started)).
			Build()
	}

	result := &Result{SessionID: a.session.ID, Location: location, Record: rec}

	a.log.Info("session persisted",
		logger.String("session_id", a.session.ID),
		logger.String("location", location),
		logger.Float64("sleep_score", report.SleepScore))

	a.session = nil
	a.report = nil
	a.sink.Clear()

	return result, nil
}
