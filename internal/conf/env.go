// env.go - environment variable overrides for sleepmon settings
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "SLEEPMON_DEBUG", validateEnvBool},
		{"storage.logdir", "SLEEPMON_LOG_DIR", nil},

		{"acoustic.source", "SLEEPMON_ACOUSTIC_SOURCE", validateEnvSource},
		{"acoustic.gpiopin", "SLEEPMON_ACOUSTIC_PIN", validateEnvPin},
		{"motion.source", "SLEEPMON_MOTION_SOURCE", validateEnvSource},
		{"motion.cooldown", "SLEEPMON_MOTION_COOLDOWN", validateEnvDuration},
		{"button.gpiopin", "SLEEPMON_BUTTON_PIN", validateEnvPin},

		{"api.listen", "SLEEPMON_API_LISTEN", nil},

		{"mqtt.enabled", "SLEEPMON_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "SLEEPMON_MQTT_BROKER", validateEnvURL},
		{"mqtt.username", "SLEEPMON_MQTT_USERNAME", nil},
		{"mqtt.password", "SLEEPMON_MQTT_PASSWORD", nil},

		{"sentry.dsn", "SLEEPMON_SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPin(value string) error {
	pin, err := strconv.Atoi(value)
	if err != nil || pin < 0 {
		return fmt.Errorf("must be a non-negative GPIO number")
	}
	return nil
}

func validateEnvSource(value string) error {
	switch value {
	case SourceGPIO, SourceMicrophone, SourceMQTT:
		return nil
	}
	return fmt.Errorf("must be one of %s, %s, %s", SourceGPIO, SourceMicrophone, SourceMQTT)
}

func validateEnvDuration(value string) error {
	if d, err := time.ParseDuration(value); err != nil || d < 0 {
		return fmt.Errorf("must be a non-negative duration like 3s")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}
