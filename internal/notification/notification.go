// Package notification pushes session reports through shoutrrr services.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/observability/metrics"
	"github.com/tphakala/sleepmon/internal/privacy"
	"github.com/tphakala/sleepmon/internal/session"
)

// GetLogger returns the notification package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}

// DefaultTimeout bounds one delivery.
const DefaultTimeout = 30 * time.Second

// Notification is one message to deliver.
type Notification struct {
	Title   string
	Message string
}

// Provider delivers notifications to one or more services.
type Provider interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Notifier sends a notification for every saved session.
type Notifier struct {
	providers []Provider
	node      string
	timeout   time.Duration
	metrics   *metrics.NotificationMetrics
	log       logger.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithNode prefixes titles with the node name.
func WithNode(name string) Option {
	return func(n *Notifier) { n.node = name }
}

// WithTimeout bounds each delivery.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithMetrics records delivery metrics.
func WithMetrics(m *metrics.NotificationMetrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// WithLogger replaces the package logger.
func WithLogger(l logger.Logger) Option {
	return func(n *Notifier) { n.log = l }
}

// NewNotifier returns a notifier over providers.
func NewNotifier(providers []Provider, opts ...Option) *Notifier {
	n := &Notifier{
		providers: providers,
		timeout:   DefaultTimeout,
		log:       GetLogger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// OnReport delivers the report of a saved session to every provider. A
// failing provider does not stop the others.
func (n *Notifier) OnReport(ctx context.Context, res *session.Result) error {
	if res == nil || res.Record == nil || res.Record.Report == nil {
		return nil
	}
	msg := FormatReport(n.node, res.Record)

	var errs []error
	for _, p := range n.providers {
		if err := n.send(ctx, p, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) send(ctx context.Context, p Provider, msg *Notification) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	started := time.Now()
	err := p.Send(ctx, msg)
	elapsed := time.Since(started)
	if n.metrics != nil {
		n.metrics.ObserveDelivery(p.Name(), elapsed.Seconds(), err)
	}

	if err != nil {
		err = privacy.WrapError(err)
		n.log.Warn("notification delivery failed",
			logger.String("provider", p.Name()),
			logger.Error(err))
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("provider", p.Name()).
			Timing("send", elapsed).
			Build()
	}
	n.log.Info("notification sent",
		logger.String("provider", p.Name()),
		logger.Duration("elapsed", elapsed))
	return nil
}

// FormatReport renders the notification for a saved session.
func FormatReport(node string, rec *session.Record) *Notification {
	r := rec.Report
	title := "Sleep report " + rec.Date()
	if node != "" {
		title = node + ": " + title
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sleep score: %.2f\n", r.SleepScore)
	fmt.Fprintf(&b, "Monitored: %.2f hours\n", r.MonitoringDurationHours)
	fmt.Fprintf(&b, "Motion: %d events, %.2f%% of the night\n", r.MotionEventCount, r.MotionPercentage)
	fmt.Fprintf(&b, "Sound peaks: %d (%.2f per hour)", r.SoundPeakCount, r.SoundPeaksPerHour)
	return &Notification{Title: title, Message: b.String()}
}
