// Package config loads process configuration from the environment and an
// optional todo-sync.toml file.
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

// EnvPrefix is prepended to every environment variable, e.g. TODO_PORT.
const EnvPrefix = "TODO"

// Config holds the application configuration
type Config struct {
	// BackendProject identifies the hosted backend (the Firebase project id).
	BackendProject string `mapstructure:"backend_project"`
	// BackendAPIKey is the public web API key of the hosted backend.
	BackendAPIKey string `mapstructure:"backend_api_key"`

	Port        string        `mapstructure:"port"`
	LogLevel    string        `mapstructure:"log_level"`
	SessionFile string        `mapstructure:"session_file"`
	MockLatency time.Duration `mapstructure:"mock_latency"`
	MockSeed    bool          `mapstructure:"mock_seed"`

	LineChannelToken  string `mapstructure:"line_channel_token"`
	LineChannelSecret string `mapstructure:"line_channel_secret"`
	LineUserID        string `mapstructure:"line_user_id"`
}

// UseMock reports whether the backend parameters are missing or still the
// placeholder values, in which case the in-memory gateway is used.
func (c *Config) UseMock() bool {
	for _, v := range []string{c.BackendProject, c.BackendAPIKey} {
		v = strings.TrimSpace(v)
		if v == "" || strings.Contains(strings.ToLower(v), "placeholder") {
			return true
		}
	}
	return false
}

// LineEnabled reports whether LINE credentials are configured.
func (c *Config) LineEnabled() bool {
	return c.LineChannelToken != "" && c.LineChannelSecret != ""
}

// Load reads configuration from TODO_* environment variables and, when
// present, a todo-sync.toml file. An explicit path must exist; the default
// search locations are optional.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("todo-sync")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir, err := configDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_project", "")
	v.SetDefault("backend_api_key", "")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("session_file", defaultSessionFile())
	v.SetDefault("mock_latency", 500*time.Millisecond)
	v.SetDefault("mock_seed", true)
	v.SetDefault("line_channel_token", "")
	v.SetDefault("line_channel_secret", "")
	v.SetDefault("line_user_id", "")
}

func configDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "todo-sync"), nil
}

func defaultSessionFile() string {
	dir, err := configDir()
	if err != nil {
		return ".todo-sync-session.toml"
	}
	return filepath.Join(dir, "session.toml")
}
