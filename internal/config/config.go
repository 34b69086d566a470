// Package config loads csdump settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// ErrCapacity is returned for a negative stream capacity.
var ErrCapacity = errors.New("config: capacity must not be negative")

// Config holds the settings shared by every csdump subcommand.
type Config struct {
	LogLevel slog.Level `env:"CMDSTREAM_LOG_LEVEL" envDefault:"WARN"`
	Backend  string     `env:"CMDSTREAM_BACKEND" envDefault:"gem"`
	Capacity int        `env:"CMDSTREAM_CAPACITY" envDefault:"0"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates a Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Capacity < 0 {
		return Config{}, fmt.Errorf("%w: %d", ErrCapacity, cfg.Capacity)
	}
	return cfg, nil
}
