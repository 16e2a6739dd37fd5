package analysis

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tphakala/sleepmon/internal/buildinfo"
	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/monitor"
	"github.com/tphakala/sleepmon/internal/telemetry"
)

// RealtimeMonitoring runs the sleep monitor until SIGINT or SIGTERM. An
// active session is saved before it returns.
func RealtimeMonitoring(settings *conf.Settings, build *buildinfo.Context, opts ...Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := GetLogger()
	log.Info("starting sleep monitor", build.Fields()...)
	log.Info("system details", monitor.ReadSystemInfo(ctx).Fields()...)

	flush, err := telemetry.InitSentry(settings, build.GetVersion())
	if err != nil {
		log.Warn("error telemetry disabled", logger.Error(err))
	}
	defer flush()

	svc, err := NewService(settings, opts...)
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}
