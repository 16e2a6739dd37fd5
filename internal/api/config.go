// Package api serves the session dashboard API over HTTP.
package api

import (
	"fmt"
	"net"
	"time"

	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultListen          = ":5000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second // toggles wait out the display messages
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultCacheTTL        = 30 * time.Second
	DefaultBodyLimit       = "64K"

	// maxRecent caps n and limit query parameters.
	maxRecent = 366
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// CacheTTL is how long query responses are cached. Zero disables caching.
	CacheTTL time.Duration

	AllowedOrigins []string
	BodyLimit      string
	Debug          bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Listen:          DefaultListen,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		CacheTTL:        DefaultCacheTTL,
		AllowedOrigins:  []string{"*"},
		BodyLimit:       DefaultBodyLimit,
	}
}

// ConfigFromSettings builds a Config from application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings == nil {
		return cfg
	}
	if settings.API.Listen != "" {
		cfg.Listen = settings.API.Listen
	}
	if settings.API.CacheTTL >= 0 {
		cfg.CacheTTL = settings.API.CacheTTL
	}
	cfg.Debug = settings.Debug
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must not be negative")
	}
	return nil
}
