package sensor

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
)

// Button turns rising edges of a signal into presses. Presses closer
// together than the debounce interval are dropped.
type Button struct {
	signal  Signal
	poll    time.Duration
	limiter *rate.Limiter
	onPress func(context.Context)
	log     logger.Logger
}

// NewButton watches sig every poll and calls onPress on each accepted press.
// A debounce of zero or less accepts every edge.
func NewButton(sig Signal, poll, debounce time.Duration, onPress func(context.Context)) *Button {
	limit := rate.Inf
	if debounce > 0 {
		limit = rate.Every(debounce)
	}
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	return &Button{
		signal:  sig,
		poll:    poll,
		limiter: rate.NewLimiter(limit, 1),
		onPress: onPress,
		log:     GetLogger().With(logger.String("trigger", "button")),
	}
}

// Run polls until ctx is cancelled or the signal becomes unavailable. The
// signal is closed on return.
func (b *Button) Run(ctx context.Context) error {
	defer func() {
		if err := b.signal.Close(); err != nil {
			b.log.Warn("failed to close button signal", logger.Error(err))
		}
	}()

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	var last bool
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		pressed, err := b.signal.Read()
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				b.log.Error("button signal unavailable, watcher stopping", logger.Error(err))
				return err
			}
			b.log.Debug("button read failed", logger.Error(err))
			continue
		}

		if pressed && !last {
			if b.limiter.Allow() {
				b.log.Debug("button pressed")
				b.onPress(ctx)
			} else {
				b.log.Debug("button press debounced")
			}
		}
		last = pressed
	}
}
