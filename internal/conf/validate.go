// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateAcousticSettings,
		validateMotionSettings,
		validateControllerSettings,
		validateStorageSettings,
		validateListenSettings,
		validateMQTTSettings,
		validateNotificationSettings,
		validateSentrySettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAcousticSettings(s *Settings) error {
	a := &s.Acoustic
	if !a.Enabled {
		return nil
	}
	switch a.Source {
	case SourceGPIO, SourceMicrophone:
	default:
		return fmt.Errorf("acoustic.source must be %q or %q, got %q", SourceGPIO, SourceMicrophone, a.Source)
	}
	if a.Threshold < 1 {
		return fmt.Errorf("acoustic.threshold must be at least 1")
	}
	if err := positiveDurations("acoustic", map[string]time.Duration{
		"window":       a.Window,
		"pollinterval": a.PollInterval,
	}); err != nil {
		return err
	}
	if a.Cooldown < 0 {
		return fmt.Errorf("acoustic.cooldown must not be negative")
	}
	if a.Source == SourceMicrophone && (a.LevelThreshold <= 0 || a.LevelThreshold > 100) {
		return fmt.Errorf("acoustic.levelthreshold must be in (0, 100]")
	}
	return nil
}

func validateMotionSettings(s *Settings) error {
	m := &s.Motion
	if !m.Enabled {
		return nil
	}
	switch m.Source {
	case SourceGPIO:
	case SourceMQTT:
		if !s.MQTT.Enabled {
			return fmt.Errorf("motion.source %q requires mqtt.enabled", SourceMQTT)
		}
		if strings.TrimSpace(m.Topic) == "" {
			return fmt.Errorf("motion.topic is required for the mqtt source")
		}
	default:
		return fmt.Errorf("motion.source must be %q or %q, got %q", SourceGPIO, SourceMQTT, m.Source)
	}
	if m.Cooldown < 0 {
		return fmt.Errorf("motion.cooldown must not be negative")
	}
	return positiveDurations("motion", map[string]time.Duration{"pollinterval": m.PollInterval})
}

func validateControllerSettings(s *Settings) error {
	c := &s.Controller
	if c.IdleDelay < 0 || c.MessagePause < 0 || c.ToggleInterval < 0 {
		return fmt.Errorf("controller durations must not be negative")
	}
	if s.Button.Enabled && s.Button.PollInterval <= 0 {
		return fmt.Errorf("button.pollinterval must be positive")
	}
	return nil
}

func validateStorageSettings(s *Settings) error {
	if strings.TrimSpace(s.Storage.LogDir) == "" {
		return fmt.Errorf("storage.logdir is required")
	}
	idx := &s.Storage.Index
	if !idx.Enabled {
		return nil
	}
	switch idx.Type {
	case IndexSQLite:
		if idx.SQLite.Path == "" {
			return fmt.Errorf("storage.index.sqlite.path is required")
		}
	case IndexMySQL:
		if idx.MySQL.Host == "" || idx.MySQL.Database == "" {
			return fmt.Errorf("storage.index.mysql host and database are required")
		}
		if idx.MySQL.Port <= 0 || idx.MySQL.Port > 65535 {
			return fmt.Errorf("storage.index.mysql.port %d out of range", idx.MySQL.Port)
		}
	default:
		return fmt.Errorf("storage.index.type must be %q or %q, got %q", IndexSQLite, IndexMySQL, idx.Type)
	}
	return nil
}

func validateListenSettings(s *Settings) error {
	if s.API.Enabled {
		if _, _, err := net.SplitHostPort(s.API.Listen); err != nil {
			return fmt.Errorf("api.listen: %w", err)
		}
	}
	if s.Telemetry.Enabled {
		if _, _, err := net.SplitHostPort(s.Telemetry.Listen); err != nil {
			return fmt.Errorf("telemetry.listen: %w", err)
		}
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	u, err := url.Parse(s.MQTT.Broker)
	if err != nil || u.Host == "" {
		return fmt.Errorf("mqtt.broker must be a URL like tcp://host:1883")
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("mqtt.broker has unsupported scheme %q", u.Scheme)
	}
	if strings.TrimSpace(s.MQTT.Topic) == "" {
		return fmt.Errorf("mqtt.topic is required")
	}
	return nil
}

func validateNotificationSettings(s *Settings) error {
	if s.Notification.Enabled && len(s.Notification.URLs) == 0 {
		return fmt.Errorf("notification.urls must list at least one service URL")
	}
	return nil
}

func validateSentrySettings(s *Settings) error {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	return nil
}

func positiveDurations(section string, values map[string]time.Duration) error {
	for name, d := range values {
		if d <= 0 {
			return fmt.Errorf("%s.%s must be positive", section, name)
		}
	}
	return nil
}
