package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/sleepmon/internal/logger"
)

// ShoutrrrProvider sends through nicholas-fedor/shoutrrr with a single
// sender for all URLs.
type ShoutrrrProvider struct {
	name    string
	urls    []string
	sender  *router.ServiceRouter
	timeout time.Duration
}

// NewShoutrrrProvider validates urls and builds the sender.
func NewShoutrrrProvider(name string, urls []string, timeout time.Duration) (*ShoutrrrProvider, error) {
	sp := &ShoutrrrProvider{
		name:    strings.TrimSpace(name),
		urls:    slices.Clone(urls),
		timeout: timeout,
	}
	if sp.name == "" {
		sp.name = "shoutrrr"
	}
	if len(sp.urls) == 0 {
		return nil, fmt.Errorf("at least one URL is required")
	}

	sender, err := shoutrrr.CreateSender(sp.urls...)
	if err != nil {
		// error text may carry tokens from the URL
		return nil, fmt.Errorf("invalid notification URL: %s", logger.RedactSensitiveData(err.Error()))
	}
	if sp.timeout > 0 {
		sender.Timeout = sp.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	sp.sender = sender
	return sp, nil
}

// Name returns the provider name.
func (s *ShoutrrrProvider) Name() string { return s.name }

// Send delivers n to every URL and returns the first failure.
func (s *ShoutrrrProvider) Send(ctx context.Context, n *Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}

	done := make(chan []error, 1)
	go func() { done <- s.sender.Send(n.Message, &params) }()

	select {
	case errs := <-done:
		for _, e := range errs {
			if e != nil {
				return fmt.Errorf("%s", logger.RedactSensitiveData(e.Error()))
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
