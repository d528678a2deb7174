package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"

	"github.com/ungeskriptet/samsung-grab/internal/domain"
	"github.com/ungeskriptet/samsung-grab/internal/remote"
)

const (
	envPrefix = "SAMSUNGGRAB_"
	appName   = "samsung-grab"
	// StoreFile is the default name of the task store.
	StoreFile = "samsung-grab.json"
)

// Config describes runtime settings. Values come from defaults, then the
// optional TOML file, then environment variables.
type Config struct {
	BaseURL     string        `env:"SAMSUNGGRAB_BASE_URL"`
	LookupURL   string        `env:"SAMSUNGGRAB_LOOKUP_URL"`
	StorePath   string        `env:"SAMSUNGGRAB_DB"`
	HTTPTimeout time.Duration `env:"SAMSUNGGRAB_HTTP_TIMEOUT"`
	// ClaimRate limits claims per second in --all mode; 0 disables pacing.
	ClaimRate   float64    `env:"SAMSUNGGRAB_CLAIM_RATE"`
	LogLevel    slog.Level `env:"SAMSUNGGRAB_LOG_LEVEL"`
	MetricsFile string     `env:"SAMSUNGGRAB_METRICS_FILE"`
	Notify      string     `env:"SAMSUNGGRAB_NOTIFY"`
}

// fileConfig mirrors Config with optional fields so that keys missing from
// the file keep their defaults.
type fileConfig struct {
	BaseURL     *string  `toml:"base_url"`
	LookupURL   *string  `toml:"lookup_url"`
	StorePath   *string  `toml:"db"`
	HTTPTimeout *string  `toml:"http_timeout"`
	ClaimRate   *float64 `toml:"claim_rate"`
	LogLevel    *string  `toml:"log_level"`
	MetricsFile *string  `toml:"metrics_file"`
	Notify      *string  `toml:"notify"`
}

func defaults() *Config {
	return &Config{
		BaseURL:   remote.DefaultBaseURL,
		LookupURL: domain.DefaultLookupPrefix,
		ClaimRate: 2,
		LogLevel:  slog.LevelWarn,
	}
}

// Load reads configuration, applying defaults when necessary. The store path
// is resolved to its final location.
func Load() (*Config, error) {
	cfg := defaults()

	path, explicit := os.Getenv(envPrefix+"CONFIG"), true
	if path == "" {
		path, explicit = filepath.Join(xdg.ConfigHome, appName, "config.toml"), false
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	cfg.StorePath = ResolveStorePath(cfg.StorePath, xdg.StateHome)
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	set(&c.BaseURL, fc.BaseURL)
	set(&c.LookupURL, fc.LookupURL)
	set(&c.StorePath, fc.StorePath)
	set(&c.ClaimRate, fc.ClaimRate)
	set(&c.MetricsFile, fc.MetricsFile)
	set(&c.Notify, fc.Notify)
	if fc.HTTPTimeout != nil {
		dur, err := time.ParseDuration(*fc.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("config %s: parse http_timeout: %w", path, err)
		}
		c.HTTPTimeout = dur
	}
	if fc.LogLevel != nil {
		if err := c.LogLevel.UnmarshalText([]byte(*fc.LogLevel)); err != nil {
			return fmt.Errorf("config %s: parse log_level: %w", path, err)
		}
	}
	return c.validate()
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (c *Config) loadEnv() error {
	if v := os.Getenv(envPrefix + "BASE_URL"); v != "" {
		c.BaseURL = v
	}

	if v := os.Getenv(envPrefix + "LOOKUP_URL"); v != "" {
		c.LookupURL = v
	}

	if v := os.Getenv(envPrefix + "DB"); v != "" {
		c.StorePath = v
	}

	if v := os.Getenv(envPrefix + "HTTP_TIMEOUT"); v != "" {
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SAMSUNGGRAB_HTTP_TIMEOUT: %w", err)
		}
		c.HTTPTimeout = dur
	}

	if v := os.Getenv(envPrefix + "CLAIM_RATE"); v != "" {
		value, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse SAMSUNGGRAB_CLAIM_RATE: %w", err)
		}
		c.ClaimRate = value
	}

	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("parse SAMSUNGGRAB_LOG_LEVEL: %w", err)
		}
	}

	if v := os.Getenv(envPrefix + "METRICS_FILE"); v != "" {
		c.MetricsFile = v
	}

	if v := os.Getenv(envPrefix + "NOTIFY"); v != "" {
		c.Notify = v
	}

	return c.validate()
}

func (c *Config) validate() error {
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http timeout must not be negative")
	}
	if c.ClaimRate < 0 {
		return fmt.Errorf("claim rate must not be negative")
	}
	return nil
}

// ResolveStorePath picks the task store location: an explicit override
// (with a leading ~ expanded), else the per-user state directory, else a
// file in the working directory.
func ResolveStorePath(override, stateHome string) string {
	if override != "" {
		return expandHome(override)
	}
	if stateHome != "" {
		return filepath.Join(expandHome(stateHome), StoreFile)
	}
	return StoreFile
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
