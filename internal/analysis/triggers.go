package analysis

import (
	"context"
	"strings"

	"github.com/tphakala/sleepmon/internal/controller"
	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/sensor"
)

// toggle is the single entry every trigger source goes through. A stop that
// is under way completes even when the trigger source is shutting down.
func (s *Service) toggle(ctx context.Context, source string) {
	err := s.controller.Toggle(context.WithoutCancel(ctx))
	switch {
	case err == nil:
		s.log.Debug("toggled", logger.String("source", source), logger.String("state", s.controller.State().String()))
	case errors.Is(err, controller.ErrClosed):
	default:
		s.log.Warn("toggle failed", logger.String("source", source), logger.Error(err))
	}
}

// runButton watches the GPIO button until ctx is done. A button that cannot
// be opened leaves the other trigger sources running.
func (s *Service) runButton(ctx context.Context) {
	sig, err := s.button()
	if err != nil {
		s.log.Warn("start/stop button unavailable", logger.Error(err))
		return
	}

	b := sensor.NewButton(sig, s.settings.Button.PollInterval, s.settings.Controller.ToggleInterval,
		func(ctx context.Context) { s.toggle(ctx, "button") })
	if err := b.Run(ctx); err != nil {
		s.log.Warn("start/stop button stopped", logger.Error(err))
	}
}

// runKeyboard toggles on every line read from the input. "q" or "quit"
// stops the service.
func (s *Service) runKeyboard(ctx context.Context) {
	s.log.Info("press Enter to start or stop monitoring, q to quit")
	err := sensor.WatchLines(ctx, s.input, func(ctx context.Context, line string) {
		switch strings.ToLower(line) {
		case "q", "quit", "exit":
			s.log.Info("quit requested from keyboard")
			s.cancel()
		default:
			s.toggle(ctx, "keyboard")
		}
	})
	if err != nil {
		s.log.Warn("keyboard input closed", logger.Error(err))
	}
}
