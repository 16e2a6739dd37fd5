package notification

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/observability/metrics"
	"github.com/tphakala/sleepmon/internal/session"
)

type fakeProvider struct {
	name  string
	err   error
	delay time.Duration

	mu   sync.Mutex
	sent []*Notification
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Send(ctx context.Context, n *Notification) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

func quiet() logger.Logger {
	return logger.NewSlogLogger(&strings.Builder{}, logger.LogLevelError, nil)
}

func result() *session.Result {
	start := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	return &session.Result{
		Location: "/logs/x.json",
		Record: &session.Record{
			StartTime: start,
			EndTime:   start.Add(8 * time.Hour),
			Report: &session.SleepReport{
				SleepScore: 91.88, MonitoringDurationHours: 8, MotionEventCount: 3,
				TotalMotionHours: 0.5, MotionPercentage: 6.25, SoundPeakCount: 10, SoundPeaksPerHour: 1.25,
			},
		},
	}
}

func TestFormatReport(t *testing.T) {
	n := FormatReport("bedroom", result().Record)
	assert.Equal(t, "bedroom: Sleep report 2024-01-01", n.Title)
	assert.Equal(t, "Sleep score: 91.88\n"+
		"Monitored: 8.00 hours\n"+
		"Motion: 3 events, 6.25% of the night\n"+
		"Sound peaks: 10 (1.25 per hour)", n.Message)

	assert.Equal(t, "Sleep report 2024-01-01", FormatReport("", result().Record).Title)
}

func TestNotifierDeliversToAllProviders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewNotificationMetrics(reg)
	require.NoError(t, err)

	ok := &fakeProvider{name: "ok"}
	bad := &fakeProvider{name: "bad", err: errors.NewStd("HTTP 500")}
	other := &fakeProvider{name: "other"}
	n := NewNotifier([]Provider{ok, bad, other}, WithNode("bedroom"), WithMetrics(m), WithLogger(quiet()))

	err = n.OnReport(context.Background(), result())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotification))
	assert.Contains(t, err.Error(), "HTTP 500")

	assert.Len(t, ok.sent, 1)
	assert.Len(t, other.sent, 1, "a failing provider does not stop the rest")
	assert.Equal(t, "bedroom: Sleep report 2024-01-01", ok.sent[0].Title)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Deliveries.WithLabelValues("ok", metrics.ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Deliveries.WithLabelValues("bad", metrics.ResultError)), 0)
}

func TestNotifierTimeout(t *testing.T) {
	slow := &fakeProvider{name: "slow", delay: time.Hour}
	n := NewNotifier([]Provider{slow}, WithTimeout(20*time.Millisecond), WithLogger(quiet()))

	err := n.OnReport(context.Background(), result())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotifierIgnoresMissingReport(t *testing.T) {
	p := &fakeProvider{name: "p"}
	n := NewNotifier([]Provider{p}, WithLogger(quiet()))
	require.NoError(t, n.OnReport(context.Background(), &session.Result{Record: &session.Record{}}))
	assert.Empty(t, p.sent)
}

func TestShoutrrrProvider(t *testing.T) {
	_, err := NewShoutrrrProvider("", nil, time.Second)
	require.Error(t, err)

	_, err = NewShoutrrrProvider("", []string{"nosuchservice://token@host"}, time.Second)
	require.Error(t, err)

	p, err := NewShoutrrrProvider("", []string{"logger://"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "shoutrrr", p.Name())
	require.NoError(t, p.Send(context.Background(), &Notification{Title: "t", Message: "hello"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Send(ctx, &Notification{Message: "x"}), context.Canceled)
}
