// Package mqtt connects sleepmon to an MQTT broker. It feeds camera motion
// into the motion detector and publishes session reports.
package mqtt

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/logger"
)

// GetLogger returns the mqtt package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}

// Client defines the MQTT operations sleepmon uses.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error
	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers handler for topic. Subscriptions survive reconnects.
	Subscribe(ctx context.Context, topic string, handler func(topic string, payload []byte)) error
	// Unsubscribe removes the subscription for topic.
	Unsubscribe(ctx context.Context, topic string) error
	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool
	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Topic suffixes under the base topic.
const (
	TopicReport = "report"
	TopicStatus = "status"

	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // base topic
	Retain   bool   // retain report messages at the broker

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
	MaxReconnect      time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		ClientID:          "sleepmon",
		Topic:             "sleepmon",
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
		MaxReconnect:      2 * time.Minute,
	}
}

// ConfigFromSettings builds a Config from application settings.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	s := settings.MQTT
	cfg.Broker = s.Broker
	switch {
	case s.ClientID != "":
		cfg.ClientID = s.ClientID
	case settings.Main.Name != "":
		// brokers drop the older connection on a duplicate id
		cfg.ClientID = settings.Main.Name + "-" + uuid.NewString()[:8]
	}
	if s.Topic != "" {
		cfg.Topic = s.Topic
	}
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.Retain = s.Retain
	return cfg
}

// TopicFor joins the base topic and suffix.
func (c Config) TopicFor(suffix string) string {
	return strings.TrimSuffix(c.Topic, "/") + "/" + suffix
}
