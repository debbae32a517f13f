package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds client configuration loaded from LOSTFOUND_* environment variables.
type Config struct {
	AuthURL string `envconfig:"AUTH_URL" default:""`
	AnonKey string `envconfig:"ANON_KEY" default:""`
	DevMode bool   `envconfig:"DEV_MODE" default:"false"`

	SessionFile string `envconfig:"SESSION_FILE" default:""`
	LogFile     string `envconfig:"LOG_FILE" default:""`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPTimeout        time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	RefreshMargin      time.Duration `envconfig:"REFRESH_MARGIN" default:"60s"`
	RefreshMaxAttempts int           `envconfig:"REFRESH_MAX_ATTEMPTS" default:"5"`

	HelpURL     string `envconfig:"HELP_URL" default:""`
	SupportRoom string `envconfig:"SUPPORT_ROOM" default:"support"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("LOSTFOUND", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the client cannot run with.
func (c *Config) Validate() error {
	if c.AuthURL != "" && c.AnonKey == "" && !c.DevMode {
		return errors.New("LOSTFOUND_ANON_KEY is required when LOSTFOUND_AUTH_URL is set")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0, got %s", c.HTTPTimeout)
	}
	if c.RefreshMargin < 0 {
		return fmt.Errorf("refresh margin must be >= 0, got %s", c.RefreshMargin)
	}
	if c.RefreshMaxAttempts < 1 {
		return fmt.Errorf("refresh max attempts must be >= 1, got %d", c.RefreshMaxAttempts)
	}
	return nil
}

// UseMemoryAuth reports whether the in-process auth provider should be used.
func (c *Config) UseMemoryAuth() bool {
	return c.DevMode || c.AuthURL == ""
}

// SessionPath returns where the auth provider persists the session,
// defaulting to <user config dir>/lostfound/session.json.
func (c *Config) SessionPath() (string, error) {
	if c.SessionFile != "" {
		return c.SessionFile, nil
	}
	return inConfigDir("session.json")
}

// LogPath returns the log file path, defaulting to
// <user config dir>/lostfound/lostfound.log.
func (c *Config) LogPath() (string, error) {
	if c.LogFile != "" {
		return c.LogFile, nil
	}
	return inConfigDir("lostfound.log")
}

func inConfigDir(name string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "lostfound", name), nil
}
