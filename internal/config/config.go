// Package config loads settings from, in increasing priority: a YAML file,
// RECALLKIT_* environment variables (a .env file is read first when present)
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/recallkit/internal/srs"
)

const envPrefix = "RECALLKIT_"

// Config is the full application configuration.
type Config struct {
	DB           string        `koanf:"db" validate:"required"`
	Listen       string        `koanf:"listen" validate:"required,hostname_port"`
	ReposDir     string        `koanf:"repos_dir" validate:"required"`
	SyncInterval time.Duration `koanf:"sync_interval" validate:"gte=0"`
	LogLevel     string        `koanf:"log_level" validate:"oneof=debug info warn error"`
	Timezone     string        `koanf:"timezone" validate:"omitempty,timezone"`
	Scheduler    srs.Params    `koanf:"scheduler"`
}

// RegisterFlags adds every config key to flags with its default value.
func RegisterFlags(flags *pflag.FlagSet) {
	d := srs.DefaultParams()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("db", "recallkit.db", "Path to the SQLite database file")
	flags.String("listen", "127.0.0.1:8080", "Address the HTTP server listens on")
	flags.String("repos_dir", "repos", "Directory git sources are checked out into")
	flags.Duration("sync_interval", time.Hour, "How often serve re-syncs sources (0 disables)")
	flags.String("log_level", "info", "Log level: debug, info, warn or error")
	flags.String("timezone", "", "IANA timezone that defines the day boundary (default: local)")
	flags.Float64("scheduler.mastered_multiplier", d.MasteredMultiplier, "Interval multiplier for Mastered")
	flags.Float64("scheduler.later_multiplier", d.LaterMultiplier, "Interval multiplier for Later")
	flags.Int("scheduler.min_interval", d.MinInterval, "Smallest interval in days")
	flags.Int("scheduler.max_interval", d.MaxInterval, "Largest interval in days")
}

// Load builds a Config from the optional file named by the --config flag,
// the environment and the flags themselves.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	path, _ := flags.GetString("config")
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// RECALLKIT_SCHEDULER__MAX_INTERVAL -> scheduler.max_interval
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Flags the user did not set only fill keys nothing else provided.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the config and its nested scheduler params.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves Timezone, defaulting to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewLogger returns a text logger on stderr at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.Level()}))
}
