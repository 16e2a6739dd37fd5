package logger

// LoggingConfig is the logging section of the application config.
type LoggingConfig struct {
	DefaultLevel string            `yaml:"default_level" json:"default_level"` // default log level for all modules
	Timezone     string            `yaml:"timezone" json:"timezone"`           // "Local", "UTC", or IANA name like "Europe/Helsinki"
	Console      *ConsoleOutput    `yaml:"console" json:"console"`
	FileOutput   *FileOutput       `yaml:"file_output" json:"file_output"`
	ModuleLevels map[string]string `yaml:"module_levels" json:"module_levels"` // per-module log levels
}

// ConsoleOutput configures the text handler on stdout.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Level   string `yaml:"level" json:"level"`
}

// FileOutput configures the JSON file handler.
type FileOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Level   string `yaml:"level" json:"level"`
}

const (
	DefaultLogLevel       = "info"
	DefaultLogPath        = "logs/sleepmon.log"
	DefaultConsoleEnabled = true
	DefaultFileEnabled    = false
)

func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled: DefaultFileEnabled,
			Path:    DefaultLogPath,
			Level:   cfg.DefaultLevel,
		}
	}
	if cfg.FileOutput.Path == "" {
		cfg.FileOutput.Path = DefaultLogPath
	}
}
