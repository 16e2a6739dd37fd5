package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/logger"
	metricspkg "github.com/tphakala/sleepmon/internal/observability/metrics"
)

// Endpoint serves /metrics on its own listener.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
}

// NewEndpoint returns an endpoint for the telemetry settings. It fails when
// telemetry is disabled.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Telemetry.Enabled {
		return nil, fmt.Errorf("telemetry not enabled in settings")
	}

	mux := http.NewServeMux()
	metrics.RegisterHandlers(mux)

	return &Endpoint{
		server:        &http.Server{Addr: settings.Telemetry.Listen, Handler: mux},
		listenAddress: settings.Telemetry.Listen,
		metrics:       metrics,
	}, nil
}

// Run serves until ctx is cancelled.
func (e *Endpoint) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("telemetry endpoint starting", logger.String("address", e.listenAddress))
		errCh <- e.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("telemetry endpoint: %w", err)
	case <-ctx.Done():
	}

	log.Info("stopping telemetry server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		log.Error("telemetry server shutdown error", logger.Error(err))
		return err
	}
	<-errCh
	return nil
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
