package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/sleepmon/internal/controller"
	"github.com/tphakala/sleepmon/internal/datastore"
	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/session"
)

// Toggler is the monitoring switch exposed over HTTP.
type Toggler interface {
	State() controller.State
	Toggle(ctx context.Context) error
}

// StatusSource reports the live session.
type StatusSource interface {
	Status() session.Status
}

// StatsSource aggregates indexed sessions.
type StatsSource interface {
	Stats(ctx context.Context, since time.Time) (*datastore.Stats, error)
}

// Server is the HTTP server of the session dashboard API.
type Server struct {
	echo    *echo.Echo
	config  *Config
	store   datastore.Querier
	toggler Toggler
	status  StatusSource
	stats   StatsSource
	metrics http.Handler
	cache   *cache.Cache
	log     logger.Logger
	now     func() time.Time

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithToggler enables the toggle and status endpoints.
func WithToggler(t Toggler) ServerOption {
	return func(s *Server) { s.toggler = t }
}

// WithStatusSource adds live session details to the status endpoint.
func WithStatusSource(src StatusSource) ServerOption {
	return func(s *Server) { s.status = src }
}

// WithStats enables the stats endpoint.
func WithStats(src StatsSource) ServerOption {
	return func(s *Server) { s.stats = src }
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// WithLogger replaces the package logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithClock replaces time.Now for the stats window.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// New creates a server reading sessions from store.
func New(config *Config, store datastore.Querier, opts ...ServerOption) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if store == nil {
		return nil, errors.ValidationError("api server needs a session store")
	}

	s := &Server{
		config:    config,
		store:     store,
		log:       GetLogger(),
		now:       time.Now,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if config.CacheTTL > 0 {
		s.cache = cache.New(config.CacheTTL, 2*config.CacheTTL)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Listen),
		logger.Bool("cache", s.cache != nil),
		logger.Bool("toggle", s.toggler != nil),
		logger.Bool("stats", s.stats != nil))
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(newRequestLogger(s.log))
	s.echo.Use(newCORS(s.config.AllowedOrigins))
	s.echo.Use(echomw.BodyLimit(s.config.BodyLimit))
	s.echo.Use(echomw.Gzip())
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	// dashboard endpoints
	s.echo.GET("/api/last7days", s.lastDays(7))
	s.echo.GET("/api/last30days", s.lastDays(30))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/sessions", s.listSessions)
	v1.GET("/sessions/recent", s.recentSessions)
	v1.GET("/sessions/latest", s.latestSession)
	v1.GET("/sessions/:id", s.getSession)
	v1.GET("/stats", s.getStats)
	v1.GET("/status", s.getStatus)
	v1.POST("/toggle", s.toggle)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}
}

func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server starting", logger.String("address", s.config.Listen))
		errCh <- s.echo.Start(s.config.Listen)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.New(err).
				Component("api").
				Category(errors.CategoryNetwork).
				Context("address", s.config.Listen).
				Build()
		}
		return nil
	case <-ctx.Done():
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	<-errCh
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Invalidate drops all cached responses.
func (s *Server) Invalidate() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

// OnReport drops cached responses when a new session is saved.
func (s *Server) OnReport(_ context.Context, res *session.Result) error {
	s.Invalidate()
	s.log.Debug("response cache flushed", logger.String("location", res.Location))
	return nil
}
