package analysis

import (
	"context"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/sleepmon/internal/api"
	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/controller"
	"github.com/tphakala/sleepmon/internal/datastore"
	"github.com/tphakala/sleepmon/internal/detector"
	"github.com/tphakala/sleepmon/internal/display"
	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/monitor"
	"github.com/tphakala/sleepmon/internal/mqtt"
	"github.com/tphakala/sleepmon/internal/notification"
	"github.com/tphakala/sleepmon/internal/observability"
	"github.com/tphakala/sleepmon/internal/sensor"
	"github.com/tphakala/sleepmon/internal/session"
)

const (
	shutdownTimeout   = 30 * time.Second
	mqttRetryInterval = 30 * time.Second
)

// Service is the assembled sleep monitor: the controller with its detectors,
// the record store and every optional integration enabled in the settings.
type Service struct {
	settings *conf.Settings

	fs        afero.Fs
	input     io.Reader
	output    io.Writer
	sources   *Sources
	preflight controller.Preflight
	mqtt      mqtt.Client
	mqttSet   bool

	store      *datastore.FileStore
	index      *datastore.Index
	metrics    *observability.Metrics
	analyzer   *session.Analyzer
	controller *controller.Controller
	api        *api.Server
	endpoint   *observability.Endpoint
	button     sensor.Opener

	cancel context.CancelFunc
	log    logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithFs stores session records on fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(s *Service) { s.fs = fs }
}

// WithInput reads keyboard toggles from r instead of stdin.
func WithInput(r io.Reader) Option {
	return func(s *Service) { s.input = r }
}

// WithOutput draws the terminal display on w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Service) { s.output = w }
}

// WithSources replaces the sensor openers selected from the settings.
func WithSources(src Sources) Option {
	return func(s *Service) { s.sources = &src }
}

// WithPreflight replaces the disk space check run before each session.
func WithPreflight(p controller.Preflight) Option {
	return func(s *Service) { s.preflight = p }
}

// WithMQTTClient replaces the paho client. A nil client disables MQTT.
func WithMQTTClient(c mqtt.Client) Option {
	return func(s *Service) {
		s.mqtt = c
		s.mqttSet = true
	}
}

// WithLogger replaces the package logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService builds the monitor from settings. Optional integrations that
// fail to initialize are logged and left out.
func NewService(settings *conf.Settings, opts ...Option) (*Service, error) {
	s := &Service{
		settings: settings,
		fs:       afero.NewOsFs(),
		input:    os.Stdin,
		output:   os.Stdout,
		log:      GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	store, err := datastore.NewFileStore(s.fs, settings.Storage.LogDir)
	if err != nil {
		return nil, err
	}
	s.store = store

	s.metrics, err = observability.NewMetrics()
	if err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategorySystem).
			Context("operation", "init_metrics").
			Build()
	}

	if settings.Storage.Index.Enabled {
		idx, err := datastore.OpenIndex(settings.Storage.Index)
		if err != nil {
			s.log.Warn("session index unavailable, continuing with JSON records only",
				logger.String("type", settings.Storage.Index.Type),
				logger.Error(err))
		} else {
			s.index = idx
		}
	}

	if !s.mqttSet && settings.MQTT.Enabled {
		c, err := mqtt.NewClient(mqtt.ConfigFromSettings(settings), mqtt.WithMetrics(s.metrics.MQTT))
		if err != nil {
			s.Close()
			return nil, err
		}
		s.mqtt = c
	}

	if s.sources == nil {
		var sub sensor.Subscriber
		if s.mqtt != nil {
			sub = s.mqtt
		}
		src, err := SourcesFromSettings(settings, sub)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.sources = &src
	}
	s.button = s.sources.Button

	s.analyzer = session.NewAnalyzer(store)
	s.controller = controller.New(
		observability.InstrumentAnalyzer(s.analyzer, s.metrics.Session),
		s.newDisplay(),
		controller.Config{
			IdleDelay:    settings.Controller.IdleDelay,
			MessagePause: settings.Controller.MessagePause,
			DashboardURL: s.dashboardURL(),
		},
		controller.WithDetectors(s.newDetectors()...),
		controller.WithReportListeners(s.newListeners()...),
		controller.WithPreflight(s.newPreflight()),
	)

	if settings.API.Enabled {
		srvOpts := []api.ServerOption{
			api.WithToggler(s.controller),
			api.WithStatusSource(s.analyzer),
			api.WithMetricsHandler(s.metrics.Handler()),
		}
		if s.index != nil {
			srvOpts = append(srvOpts, api.WithStats(s.index))
		}
		srv, err := api.New(api.ConfigFromSettings(settings), store, srvOpts...)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.api = srv
	}

	if settings.Telemetry.Enabled {
		ep, err := observability.NewEndpoint(settings, s.metrics)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.endpoint = ep
	}

	return s, nil
}

func (s *Service) newDetectors() []controller.Detector {
	var detectors []controller.Detector
	rec := s.analyzer.Recorder()
	observer := detector.WithObserver(s.metrics.Detector)

	if s.sources.Acoustic != nil {
		a := s.settings.Acoustic
		detectors = append(detectors, detector.NewAcoustic(s.sources.Acoustic, rec, detector.AcousticConfig{
			PeakConfig: detector.PeakConfig{
				Threshold: a.Threshold,
				Window:    a.Window,
				Cooldown:  a.Cooldown,
			},
			PollInterval: a.PollInterval,
		}, observer))
	}
	if s.sources.Motion != nil {
		m := s.settings.Motion
		detectors = append(detectors, detector.NewMotion(s.sources.Motion, rec, detector.MotionConfig{
			Cooldown:     m.Cooldown,
			PollInterval: m.PollInterval,
		}, observer))
	}
	return detectors
}

func (s *Service) newDisplay() display.Display {
	var d display.Multi
	if s.settings.Display.Terminal && s.output != nil {
		d = append(d, display.NewTerminal(s.output))
	}
	if s.settings.Display.Log {
		d = append(d, display.NewLogDisplay(logger.Global().Module("display")))
	}
	if len(d) == 0 {
		return display.Nop{}
	}
	return d
}

// newListeners orders the report listeners: the index first so stats served
// after the cache flush include the new session.
func (s *Service) newListeners() []controller.ReportListener {
	var listeners []controller.ReportListener
	if s.index != nil {
		listeners = append(listeners, s.index)
	}
	listeners = append(listeners, controller.ReportListenerFunc(func(ctx context.Context, res *session.Result) error {
		if s.api == nil {
			return nil
		}
		return s.api.OnReport(ctx, res)
	}))
	if s.mqtt != nil {
		listeners = append(listeners, mqtt.NewReportPublisher(s.mqtt, mqtt.ConfigFromSettings(s.settings), s.settings.Main.Name))
	}
	if n := s.newNotifier(); n != nil {
		listeners = append(listeners, n)
	}
	return listeners
}

func (s *Service) newNotifier() *notification.Notifier {
	cfg := s.settings.Notification
	if !cfg.Enabled || len(cfg.URLs) == 0 {
		return nil
	}
	provider, err := notification.NewShoutrrrProvider("shoutrrr", cfg.URLs, cfg.Timeout)
	if err != nil {
		s.log.Warn("push notifications disabled", logger.Error(err))
		return nil
	}
	return notification.NewNotifier([]notification.Provider{provider},
		notification.WithNode(s.settings.Main.Name),
		notification.WithTimeout(cfg.Timeout),
		notification.WithMetrics(s.metrics.Notification))
}

func (s *Service) newPreflight() controller.Preflight {
	if s.preflight != nil {
		return s.preflight
	}
	return monitor.NewDiskCheck(monitor.CriticalPaths(s.settings), s.settings.Monitor.MinFreePercent).Check
}

// dashboardURL is announced on the display after each report.
func (s *Service) dashboardURL() string {
	if !s.settings.API.Enabled {
		return ""
	}
	host, port, err := net.SplitHostPort(s.settings.API.Listen)
	if err != nil {
		return ""
	}
	if host == "" || net.ParseIP(host).IsUnspecified() {
		if name, err := os.Hostname(); err == nil && name != "" {
			host = strings.ToLower(name)
		} else {
			host = "localhost"
		}
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Controller returns the monitoring controller.
func (s *Service) Controller() *controller.Controller {
	return s.controller
}

// Analyzer returns the session analyzer.
func (s *Service) Analyzer() *session.Analyzer {
	return s.analyzer
}

// Store returns the record store.
func (s *Service) Store() *datastore.FileStore {
	return s.store
}

// API returns the HTTP server, or nil when the API is disabled.
func (s *Service) API() *api.Server {
	return s.api
}

// Metrics returns the metric collectors.
func (s *Service) Metrics() *observability.Metrics {
	return s.metrics
}

// Run starts the enabled integrations and trigger sources and blocks until
// ctx is cancelled or one of them fails. An active session is stopped and
// saved before Run returns.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)

	if s.mqtt != nil {
		g.Go(func() error {
			s.connectMQTT(gctx)
			return nil
		})
	}
	if s.index != nil {
		g.Go(func() error {
			s.rebuildIndex(gctx)
			return nil
		})
	}
	if s.api != nil {
		g.Go(func() error { return s.api.Run(gctx) })
	}
	if s.endpoint != nil {
		g.Go(func() error { return s.endpoint.Run(gctx) })
	}
	if s.button != nil {
		g.Go(func() error {
			s.runButton(gctx)
			return nil
		})
	}
	if s.settings.Button.Keyboard && s.input != nil {
		g.Go(func() error {
			s.runKeyboard(gctx)
			return nil
		})
	}

	s.controller.ShowIdle()
	s.log.Info("sleep monitor ready",
		logger.String("node", s.settings.Main.Name),
		logger.String("log_dir", s.store.Dir()),
		logger.Bool("api", s.api != nil),
		logger.Bool("mqtt", s.mqtt != nil),
		logger.Bool("index", s.index != nil))

	<-gctx.Done()
	s.log.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer done()
	shutdownErr := s.controller.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		s.log.Error("failed to save the active session on shutdown", logger.Error(shutdownErr))
	}

	err := g.Wait()
	s.Close()
	if err != nil {
		return err
	}
	return shutdownErr
}

// Close releases the MQTT connection and the index. Run calls it on return.
func (s *Service) Close() {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.log.Warn("failed to close session index", logger.Error(err))
		}
		s.index = nil
	}
}

func (s *Service) connectMQTT(ctx context.Context) {
	for {
		err := s.mqtt.Connect(ctx)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("MQTT broker unavailable, retrying",
			logger.Duration("retry_in", mqttRetryInterval),
			logger.Error(err))

		t := time.NewTimer(mqttRetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// rebuildIndex brings the index in line with the JSON records, which stay
// authoritative.
func (s *Service) rebuildIndex(ctx context.Context) {
	n, err := s.index.Rebuild(ctx, s.store)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("session index rebuild failed", logger.Error(err))
		}
		return
	}
	s.log.Debug("session index rebuilt", logger.Int("sessions", n))
}
