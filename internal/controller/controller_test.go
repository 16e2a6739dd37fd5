package controller

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/session"
	"github.com/tphakala/sleepmon/internal/testutil"
)

type screen struct {
	mu      sync.Mutex
	shown   [][2]string
	cleared int
}

func (s *screen) Show(a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, [2]string{a, b})
}

func (s *screen) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
}

func (s *screen) messages() [][2]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.shown)
}

func (s *screen) has(a, b string) bool {
	return slices.Contains(s.messages(), [2]string{a, b})
}

func (s *screen) last() [2]string {
	m := s.messages()
	if len(m) == 0 {
		return [2]string{}
	}
	return m[len(m)-1]
}

type fakeDetector struct {
	name    string
	failErr error
	events  *[]string
	mu      *sync.Mutex
	running atomic.Bool
}

func (d *fakeDetector) Name() string { return d.name }

func (d *fakeDetector) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	*d.events = append(*d.events, "start:"+d.name)
	if d.failErr != nil {
		return d.failErr
	}
	d.running.Store(true)
	return nil
}

func (d *fakeDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	*d.events = append(*d.events, "stop:"+d.name)
	d.running.Store(false)
}

type countingStore struct {
	calls atomic.Int32
	fail  atomic.Bool

	// when set, Save signals entered and blocks until release is closed
	entered chan struct{}
	release chan struct{}
}

func (s *countingStore) Save(_ context.Context, rec *session.Record) (string, error) {
	if s.release != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	n := s.calls.Add(1)
	if s.fail.Load() {
		return "", errors.NewStd("disk full")
	}
	return fmt.Sprintf("sleep_log_%d.json", n), nil
}

type harness struct {
	ctrl     *Controller
	analyzer *session.Analyzer
	store    *countingStore
	screen   *screen
	events   *[]string
	eventsMu *sync.Mutex
}

// steppingClock advances one hour per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Hour)
		return now
	}
}

func newHarness(t *testing.T, cfg Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:    &countingStore{},
		screen:   &screen{},
		events:   &[]string{},
		eventsMu: &sync.Mutex{},
	}
	h.analyzer = session.NewAnalyzer(h.store, session.WithClock(steppingClock()))
	if cfg.IdleDelay == 0 {
		cfg.IdleDelay = time.Hour
	}
	h.ctrl = New(h.analyzer, h.screen, cfg, opts...)
	return h
}

func (h *harness) detector(name string, failErr error) *fakeDetector {
	return &fakeDetector{name: name, failErr: failErr, events: h.events, mu: h.eventsMu}
}

func (h *harness) eventLog() []string {
	h.eventsMu.Lock()
	defer h.eventsMu.Unlock()
	return slices.Clone(*h.events)
}

func TestToggleStartsAndStops(t *testing.T) {
	h := newHarness(t, Config{})
	acoustic, motion := h.detector("acoustic", nil), h.detector("motion", nil)
	h.ctrl.detectors = []Detector{acoustic, motion}
	ctx := context.Background()

	require.NoError(t, h.ctrl.Toggle(ctx))
	assert.Equal(t, StateActive, h.ctrl.State())
	assert.Equal(t, session.StateMonitoring, h.analyzer.State())
	assert.True(t, acoustic.running.Load())
	assert.True(t, motion.running.Load())
	assert.Equal(t, [2]string{"Monitoring", "Active"}, h.screen.last())
	assert.True(t, h.screen.has("Starting", "Monitoring..."))
	assert.True(t, h.screen.has("Initializing", "Acoustic Monitor"))
	assert.True(t, h.screen.has("Initializing", "Motion Monitor"))

	require.NoError(t, h.ctrl.Toggle(ctx))
	assert.Equal(t, StateIdle, h.ctrl.State())
	assert.Equal(t, session.StateIdle, h.analyzer.State())
	assert.Equal(t, []string{"start:acoustic", "start:motion", "stop:acoustic", "stop:motion"}, h.eventLog())
	assert.Equal(t, int32(1), h.store.calls.Load())

	for _, msg := range [][2]string{
		{"Stopping", "Monitoring..."},
		{"Saving Log", "Please Wait..."},
		{"Generating", "Sleep Report"},
		{"Sleep Score:", "100.00"},
	} {
		assert.True(t, h.screen.has(msg[0], msg[1]), "missing %v", msg)
	}

	res := h.ctrl.LastResult()
	require.NotNil(t, res)
	assert.Equal(t, "sleep_log_1.json", res.Location)
	assert.True(t, h.ctrl.idle.Pending())
}

func TestStopTwicePersistsOnce(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	require.NoError(t, h.ctrl.Stop(ctx))

	err := h.ctrl.Stop(ctx)
	require.ErrorIs(t, err, ErrNotActive)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	assert.Equal(t, int32(1), h.store.calls.Load())
	assert.True(t, h.screen.has("Not Currently", "Monitoring"))
	assert.Equal(t, [2]string{"Press Button", "to Start/Stop"}, h.screen.last())
}

func TestStartTwiceIsNoop(t *testing.T) {
	h := newHarness(t, Config{})
	d := h.detector("acoustic", nil)
	h.ctrl.detectors = []Detector{d}
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	err := h.ctrl.Start(ctx)
	require.ErrorIs(t, err, ErrAlreadyActive)
	assert.Equal(t, StateActive, h.ctrl.State())
	assert.Equal(t, []string{"start:acoustic"}, h.eventLog())
	assert.True(t, h.screen.has("Already", "Monitoring"))
	assert.Equal(t, [2]string{"Monitoring", "Active"}, h.screen.last())

	require.NoError(t, h.ctrl.Stop(ctx))
}

func TestDetectorFailureDoesNotAbortSession(t *testing.T) {
	h := newHarness(t, Config{})
	broken := h.detector("acoustic", assert.AnError)
	motion := h.detector("motion", nil)
	h.ctrl.detectors = []Detector{broken, motion}
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	assert.Equal(t, StateActive, h.ctrl.State())
	assert.True(t, motion.running.Load())
	assert.True(t, h.screen.has("Sensor Error:", "Acoustic Monitor"))

	require.NoError(t, h.ctrl.Stop(ctx))
	assert.Equal(t, int32(1), h.store.calls.Load())
}

func TestPersistFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.store.fail.Store(true)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	err := h.ctrl.Stop(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
	assert.Equal(t, StateIdle, h.ctrl.State())
	assert.True(t, h.screen.has("Error:", "Save Failed"))
	assert.Nil(t, h.ctrl.LastResult())

	require.ErrorIs(t, h.ctrl.Stop(ctx), ErrNotActive)
	assert.False(t, h.analyzer.Status().Persisted)
}

func TestStartSavesPendingSessionFirst(t *testing.T) {
	h := newHarness(t, Config{})
	h.store.fail.Store(true)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	require.Error(t, h.ctrl.Stop(ctx))
	first := h.analyzer.Status()

	// still failing: the new session is refused and the old one kept
	err := h.ctrl.Start(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
	assert.Equal(t, StateIdle, h.ctrl.State())
	assert.Equal(t, first.SessionID, h.analyzer.Status().SessionID)

	h.store.fail.Store(false)
	require.NoError(t, h.ctrl.Start(ctx))
	require.NotNil(t, h.ctrl.LastResult())
	assert.Equal(t, first.StartTime, h.ctrl.LastResult().Record.StartTime)
	assert.Equal(t, StateActive, h.ctrl.State())

	require.NoError(t, h.ctrl.Stop(ctx))
	assert.Equal(t, int32(4), h.store.calls.Load())
}

func TestShutdownSavesPendingSession(t *testing.T) {
	h := newHarness(t, Config{})
	h.store.fail.Store(true)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	require.Error(t, h.ctrl.Stop(ctx))

	h.store.fail.Store(false)
	require.NoError(t, h.ctrl.Shutdown(ctx))
	assert.True(t, h.analyzer.Status().Persisted)
	assert.NotNil(t, h.ctrl.LastResult())
	assert.Equal(t, [2]string{"System", "Shutting Down"}, h.screen.last())
}

func TestReportListeners(t *testing.T) {
	var got []*session.Result
	ok := ReportListenerFunc(func(_ context.Context, res *session.Result) error {
		got = append(got, res)
		return nil
	})
	failing := ReportListenerFunc(func(context.Context, *session.Result) error {
		return assert.AnError
	})

	h := newHarness(t, Config{DashboardURL: "127.0.0.1:5000"}, WithReportListeners(failing, ok))
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	require.NoError(t, h.ctrl.Stop(ctx), "listener failures are not returned")

	require.Len(t, got, 1)
	assert.Equal(t, h.ctrl.LastResult(), got[0])
	assert.Equal(t, [2]string{"Report Ready", "127.0.0.1:5000"}, h.screen.last())
}

func TestPreflightFailureWarns(t *testing.T) {
	var checks atomic.Int32
	h := newHarness(t, Config{}, WithPreflight(func(context.Context) error {
		checks.Add(1)
		return assert.AnError
	}))
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	assert.Equal(t, int32(1), checks.Load())
	assert.True(t, h.screen.has("Warning:", "Check Storage"))
	assert.Equal(t, StateActive, h.ctrl.State())
	require.NoError(t, h.ctrl.Stop(ctx))
}

func TestIdlePromptAfterStop(t *testing.T) {
	h := newHarness(t, Config{IdleDelay: 10 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	require.NoError(t, h.ctrl.Stop(ctx))

	require.Eventually(t, func() bool {
		return h.screen.last() == [2]string{"Press Button", "to Start/Stop"}
	}, time.Second, time.Millisecond)
	assert.False(t, h.ctrl.idle.Pending())
}

func TestStartCancelsIdlePrompt(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	require.NoError(t, h.ctrl.Stop(ctx))
	assert.True(t, h.ctrl.idle.Pending())

	require.NoError(t, h.ctrl.Start(ctx))
	assert.False(t, h.ctrl.idle.Pending())
	require.NoError(t, h.ctrl.Stop(ctx))
}

func TestShutdownWhileActive(t *testing.T) {
	h := newHarness(t, Config{})
	d := h.detector("motion", nil)
	h.ctrl.detectors = []Detector{d}
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	require.NoError(t, h.ctrl.Shutdown(ctx))

	assert.False(t, d.running.Load())
	assert.Equal(t, int32(1), h.store.calls.Load())
	assert.Equal(t, StateIdle, h.ctrl.State())
	assert.Equal(t, [2]string{"System", "Shutting Down"}, h.screen.last())
	assert.Equal(t, 1, h.screen.cleared)
	assert.False(t, h.ctrl.idle.Pending())

	require.ErrorIs(t, h.ctrl.Toggle(ctx), ErrClosed)
	require.ErrorIs(t, h.ctrl.Start(ctx), ErrClosed)
	require.NoError(t, h.ctrl.Shutdown(ctx))
}

func TestShutdownDuringStopLeavesNoIdlePrompt(t *testing.T) {
	h := newHarness(t, Config{IdleDelay: 20 * time.Millisecond})
	h.store.entered = make(chan struct{})
	h.store.release = make(chan struct{})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))

	stopped := make(chan error, 1)
	go func() { stopped <- h.ctrl.Toggle(ctx) }()
	testutil.Receive(t, h.store.entered, testutil.ShortTestTimeout, "save was not reached")

	shut := make(chan error, 1)
	go func() { shut <- h.ctrl.Shutdown(ctx) }()
	// let Shutdown queue behind the stop before the save completes
	time.Sleep(10 * time.Millisecond)
	close(h.store.release)

	require.NoError(t, testutil.Receive(t, stopped, testutil.ShortTestTimeout, "stop did not finish"))
	require.NoError(t, testutil.Receive(t, shut, testutil.ShortTestTimeout, "shutdown did not finish"))

	assert.False(t, h.ctrl.idle.Pending())
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, [2]string{"System", "Shutting Down"}, h.screen.last())
	assert.Equal(t, 1, h.screen.cleared)
}

func TestShutdownWhileIdle(t *testing.T) {
	h := newHarness(t, Config{})
	require.NoError(t, h.ctrl.Shutdown(context.Background()))
	assert.Zero(t, h.store.calls.Load())
	assert.Equal(t, 1, h.screen.cleared)
}

func TestConcurrentTogglesAreSerialized(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.ctrl.Toggle(ctx))
		}()
	}
	wg.Wait()

	// an even number of toggles ends idle with one save per stop
	assert.Equal(t, StateIdle, h.ctrl.State())
	assert.Equal(t, int32(n/2), h.store.calls.Load())
}

func TestMessagePauseHonoursContext(t *testing.T) {
	h := newHarness(t, Config{MessagePause: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Start(ctx) }()

	require.NoError(t, testutil.Receive(t, done, testutil.ShortTestTimeout, "pauses ignored a cancelled context"))
	require.NoError(t, h.ctrl.Stop(ctx))
}

func TestMonitorLabel(t *testing.T) {
	assert.Equal(t, "Acoustic Monitor", monitorLabel("acoustic"))
	assert.Equal(t, "Monitor", monitorLabel(""))
}
