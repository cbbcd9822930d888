package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Venv    VenvConfig    `mapstructure:"venv"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// StoreConfig holds the on-disk environment store configuration
type StoreConfig struct {
	Root string `mapstructure:"root"`
}

// VenvConfig holds virtual environment lifecycle configuration
type VenvConfig struct {
	CreateTimeoutSec  int `mapstructure:"create_timeout_sec"`
	InstallTimeoutSec int `mapstructure:"install_timeout_sec"`
	ExecTimeoutSec    int `mapstructure:"exec_timeout_sec"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "http")
	viper.SetDefault("server.http_port", 8000)
	viper.SetDefault("store.root", defaultStoreRoot())
	viper.SetDefault("venv.create_timeout_sec", 30)
	viper.SetDefault("venv.install_timeout_sec", 300)
	viper.SetDefault("venv.exec_timeout_sec", 30)
	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// defaultStoreRoot returns the default cache root for named environments.
// Prefers a dotted directory under the user's home, falling back to the
// system temp directory when no home is available.
func defaultStoreRoot() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".venvbox")
	}
	return filepath.Join(os.TempDir(), "venvbox")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	switch c.Server.Transport {
	case "http", "mcp-stdio", "mcp-http":
	default:
		return fmt.Errorf("invalid server.transport: %s, must be 'http', 'mcp-stdio' or 'mcp-http'", c.Server.Transport)
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Store.Root == "" {
		return fmt.Errorf("store.root must not be empty")
	}

	if c.Venv.CreateTimeoutSec <= 0 {
		return fmt.Errorf("venv.create_timeout_sec must be positive, got: %d", c.Venv.CreateTimeoutSec)
	}

	if c.Venv.InstallTimeoutSec <= 0 {
		return fmt.Errorf("venv.install_timeout_sec must be positive, got: %d", c.Venv.InstallTimeoutSec)
	}

	if c.Venv.ExecTimeoutSec <= 0 {
		return fmt.Errorf("venv.exec_timeout_sec must be positive, got: %d", c.Venv.ExecTimeoutSec)
	}

	return nil
}

// CreateTimeout returns the environment creation timeout as a duration
func (c *Config) CreateTimeout() time.Duration {
	return time.Duration(c.Venv.CreateTimeoutSec) * time.Second
}

// InstallTimeout returns the dependency installation timeout as a duration
func (c *Config) InstallTimeout() time.Duration {
	return time.Duration(c.Venv.InstallTimeoutSec) * time.Second
}

// ExecTimeout returns the code execution timeout as a duration
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.Venv.ExecTimeoutSec) * time.Second
}
