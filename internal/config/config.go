package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppName names the config directory and the environment prefix
const AppName = "git-annex-remote-synology"

// EnvPrefix prefixes environment overrides, e.g. GIT_ANNEX_REMOTE_SYNOLOGY_LOGGING_LEVEL
const EnvPrefix = "GIT_ANNEX_REMOTE_SYNOLOGY"

// Config represents the process-level configuration. Per-remote settings
// such as hostname and path come from the host instead.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Transfer TransferConfig `mapstructure:"transfer"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// DatabaseConfig contains credential database settings
type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	BusyTimeoutMs int    `mapstructure:"busy_timeout_ms"`
	MaxRetries    int    `mapstructure:"max_retries"`
}

// HTTPConfig contains vendor API client settings
type HTTPConfig struct {
	Timeout      string `mapstructure:"timeout"`
	BufferSizeKB int    `mapstructure:"buffer_size_kb"`
}

// TransferConfig contains transfer settings
type TransferConfig struct {
	ProgressInterval string `mapstructure:"progress_interval"`
}

// Dir returns the default config directory
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Load loads configuration from configPath, or from config.yaml in dir
// when configPath is empty. A missing default file is not an error.
func Load(configPath, dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("database.path", filepath.Join(dir, "config.db"))
	v.SetDefault("database.busy_timeout_ms", 5000)
	v.SetDefault("database.max_retries", 5)
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.buffer_size_kb", 1024)
	v.SetDefault("transfer.progress_interval", "1s")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.BusyTimeoutMs < 0 {
		return fmt.Errorf("database.busy_timeout_ms must not be negative")
	}
	if c.Database.MaxRetries < 0 {
		return fmt.Errorf("database.max_retries must not be negative")
	}

	if _, err := time.ParseDuration(c.HTTP.Timeout); err != nil {
		return fmt.Errorf("invalid http.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Transfer.ProgressInterval); err != nil {
		return fmt.Errorf("invalid transfer.progress_interval: %w", err)
	}

	return nil
}

// GetBusyTimeout returns the SQLite busy timeout as time.Duration
func (c *DatabaseConfig) GetBusyTimeout() time.Duration {
	return time.Duration(c.BusyTimeoutMs) * time.Millisecond
}

// GetTimeout returns the HTTP timeout as time.Duration
func (c *HTTPConfig) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetProgressInterval returns the progress report interval as time.Duration
func (c *TransferConfig) GetProgressInterval() time.Duration {
	d, _ := time.ParseDuration(c.ProgressInterval)
	return d
}
