// config.go: settings struct for sleepmon and the functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/secrets"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains the instance identity.
type MainSettings struct {
	Name string // node name, used in notifications and MQTT topics
}

// ConsoleLogSettings controls the stdout log handler.
type ConsoleLogSettings struct {
	Enabled bool
	Level   string
}

// FileLogSettings controls the JSON log file.
type FileLogSettings struct {
	Enabled bool
	Path    string
	Level   string
}

// LoggingSettings mirrors logger.LoggingConfig.
type LoggingSettings struct {
	DefaultLevel string
	Timezone     string
	Console      ConsoleLogSettings
	File         FileLogSettings
	ModuleLevels map[string]string
}

// AcousticSettings configures the acoustic peak detector and its trigger source.
type AcousticSettings struct {
	Enabled        bool
	Source         string        // "gpio" or "microphone"
	GPIOPin        int           // sysfs GPIO number of the sound sensor digital output
	ActiveLow      bool          // sensor pulls the line low when triggered
	Device         string        // capture device name for the microphone source, empty for default
	LevelThreshold float64       // microphone level 0-100 that counts as a raw trigger
	Threshold      int           // raw triggers within Window that confirm a peak
	Window         time.Duration // detection window
	Cooldown       time.Duration // minimum gap between confirmed peaks
	PollInterval   time.Duration
}

// MotionSettings configures the motion detector and its signal source.
type MotionSettings struct {
	Enabled       bool
	Source        string        // "mqtt" or "gpio"
	GPIOPin       int           // PIR sensor pin for the gpio source
	ActiveLow     bool
	Topic         string        // motion topic for the mqtt source
	SignalTimeout time.Duration // mqtt motion state expires after this long without updates
	Cooldown      time.Duration // continuous quiet time that closes a motion interval
	PollInterval  time.Duration
}

// ControllerSettings configures the toggle state machine.
type ControllerSettings struct {
	IdleDelay      time.Duration // delay before the idle prompt is shown
	MessagePause   time.Duration // pause between consecutive status messages
	ToggleInterval time.Duration // minimum time between accepted toggles
}

// ButtonSettings configures the physical start/stop button.
type ButtonSettings struct {
	Enabled      bool
	GPIOPin      int
	ActiveLow    bool
	PollInterval time.Duration
	Keyboard     bool // Enter on stdin also toggles monitoring
}

// DisplaySettings selects the status displays.
type DisplaySettings struct {
	Terminal bool // draw a 16x2 box on stdout
	Log      bool // write status lines to the log
}

// SQLiteSettings contains settings for the SQLite session index.
type SQLiteSettings struct {
	Path string
}

// MySQLSettings contains settings for the MySQL session index.
type MySQLSettings struct {
	Host     string
	Port     int
	Username     string
	Password     string
	PasswordFile string // read the password from this file instead
	Database     string
}

// IndexSettings configures the optional session index database.
type IndexSettings struct {
	Enabled bool
	Type    string // "sqlite" or "mysql"
	SQLite  SQLiteSettings
	MySQL   MySQLSettings
}

// StorageSettings configures where session records are written.
type StorageSettings struct {
	LogDir string
	Index  IndexSettings
}

// APISettings configures the read-only session API.
type APISettings struct {
	Enabled  bool
	Listen   string
	CacheTTL time.Duration
}

// TelemetrySettings configures the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool
	Listen  string
}

// MQTTSettings configures the MQTT client.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	ClientID string
	Topic    string // base topic, reports go to <Topic>/report
	Username     string
	Password     string
	PasswordFile string // read the password from this file instead
	Retain       bool
}

// NotificationSettings configures shoutrrr push notifications.
type NotificationSettings struct {
	Enabled bool
	URLs    []string
	Timeout time.Duration
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// MonitorSettings configures system checks.
type MonitorSettings struct {
	MinFreePercent float64 // warn before monitoring when the log volume has less free space
}

// Settings contains all configuration options for sleepmon.
type Settings struct {
	Debug bool

	Main         MainSettings
	Logging      LoggingSettings
	Acoustic     AcousticSettings
	Motion       MotionSettings
	Controller   ControllerSettings
	Button       ButtonSettings
	Display      DisplaySettings
	Storage      StorageSettings
	API          APISettings
	Telemetry    TelemetrySettings
	MQTT         MQTTSettings
	Notification NotificationSettings
	Sentry       SentrySettings
	Monitor      MonitorSettings
}

// LoggerConfig converts the logging section for logger.NewCentralLogger.
func (s *Settings) LoggerConfig() *logger.LoggingConfig {
	level := s.Logging.DefaultLevel
	if s.Debug {
		level = "debug"
	}
	return &logger.LoggingConfig{
		DefaultLevel: level,
		Timezone:     s.Logging.Timezone,
		Console: &logger.ConsoleOutput{
			Enabled: s.Logging.Console.Enabled,
			Level:   s.Logging.Console.Level,
		},
		FileOutput: &logger.FileOutput{
			Enabled: s.Logging.File.Enabled,
			Path:    s.Logging.File.Path,
			Level:   s.Logging.File.Level,
		},
		ModuleLevels: s.Logging.ModuleLevels,
	}
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the config file from the default locations, creating it from
// the embedded default when none exists.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings, err := unmarshalAndValidate()
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// LoadFile reads settings from an explicit config file path.
func LoadFile(path string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	viper.SetConfigFile(path)
	setDefaultConfig()
	if err := bindEnvVars(); err != nil {
		return nil, err
	}
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	settings, err := unmarshalAndValidate()
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func unmarshalAndValidate() (*Settings, error) {
	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	settings.Storage.LogDir = GetBasePath(settings.Storage.LogDir)

	if err := resolveSecrets(settings, secrets.New(afero.NewOsFs())); err != nil {
		return nil, fmt.Errorf("error resolving secrets: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config into dir and loads it.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))

	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		GetLogger().Error("failed to read embedded default config", logger.Error(err))
		return ""
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Redacted returns a copy of s with passwords masked and credentials removed
// from broker, notification and Sentry URLs.
func (s *Settings) Redacted() *Settings {
	c := *s
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return redactedValue
	}
	c.MQTT.Password = mask(c.MQTT.Password)
	c.MQTT.Broker = logger.RedactURL(c.MQTT.Broker)
	c.Storage.Index.MySQL.Password = mask(c.Storage.Index.MySQL.Password)
	c.Sentry.DSN = logger.RedactURL(c.Sentry.DSN)
	c.Notification.URLs = make([]string, len(s.Notification.URLs))
	for i, u := range s.Notification.URLs {
		c.Notification.URLs[i] = logger.RedactURL(u)
	}
	return &c
}

// WriteYAML writes the redacted settings to w in the config file layout.
func WriteYAML(w io.Writer, settings *Settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(settings.Redacted()); err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return enc.Close()
}
