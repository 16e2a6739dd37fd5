package sensor

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
)

// Subscriber delivers messages published on a topic.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler func(topic string, payload []byte)) error
	Unsubscribe(ctx context.Context, topic string) error
}

// MQTTMotion is a motion signal fed by a camera publishing its per-frame
// "motion present" result. Until the first message arrives the camera is
// warming up and the signal reads false. A state older than the signal
// timeout also reads false.
type MQTTMotion struct {
	sub     Subscriber
	topic   string
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	present bool
	updated time.Time
	closed  bool
}

// NewMQTTMotion subscribes to topic. A timeout of zero or less keeps the
// last state indefinitely.
func NewMQTTMotion(ctx context.Context, sub Subscriber, topic string, timeout time.Duration) (*MQTTMotion, error) {
	m := &MQTTMotion{sub: sub, topic: topic, timeout: timeout, now: time.Now}
	if err := sub.Subscribe(ctx, topic, m.handle); err != nil {
		return nil, errors.New(err).
			Component("sensor").
			Category(errors.CategorySensor).
			Context("topic", topic).
			Build()
	}
	return m, nil
}

func (m *MQTTMotion) handle(_ string, payload []byte) {
	present, err := ParseMotionPayload(payload)
	if err != nil {
		GetLogger().Debug("ignoring motion payload",
			logger.String("topic", m.topic),
			logger.Error(err))
		return
	}

	m.mu.Lock()
	m.present = present
	m.updated = m.now()
	m.mu.Unlock()
}

// Read returns the latest fresh motion state.
func (m *MQTTMotion) Read() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return false, ErrUnavailable
	case m.updated.IsZero():
		return false, nil
	case m.timeout > 0 && m.now().Sub(m.updated) > m.timeout:
		return false, nil
	}
	return m.present, nil
}

// Close unsubscribes from the motion topic.
func (m *MQTTMotion) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.sub.Unsubscribe(ctx, m.topic)
}

// MQTTMotionOpener returns an Opener subscribing a fresh MQTTMotion.
func MQTTMotionOpener(sub Subscriber, topic string, timeout time.Duration) Opener {
	return func() (Signal, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return NewMQTTMotion(ctx, sub, topic, timeout)
	}
}

var errBadPayload = errors.NewStd("unrecognized motion payload")

// ParseMotionPayload accepts plain words ("1", "true", "on", "motion" and
// their opposites) and JSON objects carrying a "motion" boolean or a
// "state" of ON/OFF.
func ParseMotionPayload(payload []byte) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(string(payload)))
	switch s {
	case "1", "true", "on", "yes", "motion", "detected":
		return true, nil
	case "0", "false", "off", "no", "clear", "none":
		return false, nil
	}

	if strings.HasPrefix(s, "{") {
		var msg struct {
			Motion *bool   `json:"motion"`
			State  *string `json:"state"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			return false, err
		}
		if msg.Motion != nil {
			return *msg.Motion, nil
		}
		if msg.State != nil {
			return ParseMotionPayload([]byte(*msg.State))
		}
	}
	return false, errBadPayload
}
