package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/observability/metrics"
)

type handlerFunc = func(topic string, payload []byte)

// client implements the Client interface over paho.
type client struct {
	config  Config
	metrics *metrics.MQTTMetrics
	log     logger.Logger

	// newPaho creates the underlying client; replaced in tests.
	newPaho func(*paho.ClientOptions) paho.Client

	mu       sync.Mutex
	internal paho.Client
	subs     map[string]handlerFunc
}

// Option configures the client.
type Option func(*client)

// WithMetrics records connection and publish metrics.
func WithMetrics(m *metrics.MQTTMetrics) Option {
	return func(c *client) { c.metrics = m }
}

// WithLogger replaces the package logger.
func WithLogger(l logger.Logger) Option {
	return func(c *client) { c.log = l }
}

func withPahoFactory(fn func(*paho.ClientOptions) paho.Client) Option {
	return func(c *client) { c.newPaho = fn }
}

// NewClient creates a new MQTT client with the provided configuration.
func NewClient(cfg Config, opts ...Option) (Client, error) {
	if _, err := url.Parse(cfg.Broker); err != nil || cfg.Broker == "" {
		return nil, errors.New(fmt.Errorf("invalid broker URL %q", cfg.Broker)).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	c := &client{
		config:  cfg,
		log:     GetLogger(),
		newPaho: paho.NewClient,
		subs:    make(map[string]handlerFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect resolves the broker host and connects. Paho keeps the connection
// alive and reconnects on its own afterwards.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return c.connectError(fmt.Errorf("invalid broker URL: %w", err))
	}
	if host := u.Hostname(); host != "" && net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.connectError(fmt.Errorf("failed to resolve hostname %s: %w", host, err))
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnect)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetWill(c.config.TopicFor(TopicStatus), StatusOffline, 1, true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		if c.metrics != nil {
			c.metrics.IncrementReconnectAttempts()
		}
	})

	c.internal = c.newPaho(opts)

	token := c.internal.Connect()
	if err := wait(ctx, token, c.config.ConnectTimeout); err != nil {
		return c.connectError(err)
	}

	c.log.Info("connected to MQTT broker", logger.String("broker", logger.RedactURL(c.config.Broker)))
	return nil
}

func (c *client) connectError(err error) error {
	if c.metrics != nil {
		c.metrics.IncrementErrors()
	}
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTConnect).
		Context("broker", logger.RedactURL(c.config.Broker)).
		Build()
}

// Publish sends payload to topic. Report topics honour the retain setting.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return c.publishError(errors.NewStd("not connected to MQTT broker"), topic)
	}

	var timer *metrics.PublishTimer
	if c.metrics != nil {
		timer = c.metrics.StartPublishTimer()
	}

	token := internal.Publish(topic, 1, c.config.Retain, payload)
	if err := wait(ctx, token, c.config.PublishTimeout); err != nil {
		return c.publishError(err, topic)
	}

	if c.metrics != nil {
		timer.ObserveDuration()
		c.metrics.IncrementMessagesDelivered()
	}
	c.log.Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

func (c *client) publishError(err error, topic string) error {
	if c.metrics != nil {
		c.metrics.IncrementErrors()
	}
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTPublish).
		Context("topic", topic).
		Build()
}

// Subscribe registers handler for topic. The subscription is renewed on
// every reconnect.
func (c *client) Subscribe(ctx context.Context, topic string, handler func(topic string, payload []byte)) error {
	c.mu.Lock()
	c.subs[topic] = handler
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		c.log.Info("subscription deferred until connected", logger.String("topic", topic))
		return nil
	}
	return c.subscribe(ctx, internal, topic, handler)
}

func (c *client) subscribe(ctx context.Context, internal paho.Client, topic string, handler handlerFunc) error {
	token := internal.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		if c.metrics != nil {
			c.metrics.IncrementMessagesReceived()
		}
		handler(msg.Topic(), msg.Payload())
	})
	if err := wait(ctx, token, c.config.PublishTimeout); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnect).
			Context("topic", topic).
			Context("operation", "subscribe").
			Build()
	}
	c.log.Info("subscribed", logger.String("topic", topic))
	return nil
}

// Unsubscribe removes the subscription for topic.
func (c *client) Unsubscribe(ctx context.Context, topic string) error {
	c.mu.Lock()
	delete(c.subs, topic)
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return nil
	}
	return wait(ctx, internal.Unsubscribe(topic), c.config.PublishTimeout)
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internal != nil && c.internal.IsConnected()
}

// Disconnect publishes the offline status and closes the connection.
func (c *client) Disconnect() {
	c.mu.Lock()
	internal := c.internal
	c.internal = nil
	c.mu.Unlock()

	if internal == nil {
		return
	}
	if internal.IsConnected() {
		token := internal.Publish(c.config.TopicFor(TopicStatus), 1, true, StatusOffline)
		token.WaitTimeout(c.config.PublishTimeout)
	}
	internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(false)
	}
	c.log.Info("disconnected from MQTT broker")
}

// onConnect runs on the first connect and on every reconnect.
func (c *client) onConnect(internal paho.Client) {
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}
	internal.Publish(c.config.TopicFor(TopicStatus), 1, true, StatusOnline)

	c.mu.Lock()
	subs := make(map[string]handlerFunc, len(c.subs))
	for topic, h := range c.subs {
		subs[topic] = h
	}
	c.mu.Unlock()

	// paho calls this on its own goroutine; waiting here is fine
	for topic, h := range subs {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.PublishTimeout)
		if err := c.subscribe(ctx, internal, topic, h); err != nil {
			c.log.Warn("resubscribe failed", logger.String("topic", topic), logger.Error(err))
		}
		cancel()
	}
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost", logger.Error(err))
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(false)
		c.metrics.IncrementErrors()
	}
}

// wait blocks until token completes, ctx is done or timeout elapses.
func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New(errors.NewStd("mqtt operation timed out")).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Context("timeout", timeout).
			Build()
	}
}
