// Package config reads process settings from the environment.
//
// A .env file, when present, is loaded first. Variables already set in the
// environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultDotEnv is the file Load reads when no other path is given.
const DefaultDotEnv = ".env"

// Config holds the process settings.
type Config struct {
	// PlatformURL is the base URL of the game platform API.
	PlatformURL string `env:"TBA_PLATFORM_URL" envDefault:"https://lichess.org"`
	// PlatformToken is an optional API token. Authenticated clients may
	// follow more games per stream.
	PlatformToken string `env:"TBA_PLATFORM_TOKEN"`

	RateLimit float64 `env:"TBA_RATE_LIMIT" envDefault:"4"`
	RateBurst int     `env:"TBA_RATE_BURST" envDefault:"4"`

	// RecordDB is the SQLite file live tours are recorded to. Empty
	// disables recording.
	RecordDB string `env:"TBA_RECORD_DB"`

	LogLevel string `env:"TBA_LOG_LEVEL" envDefault:"info"`
	// MetricsAddr, when set, serves /metrics on this address.
	MetricsAddr string `env:"TBA_METRICS_ADDR"`
}

// Load reads the dotenv file, if it exists, then parses the environment.
// An empty path means DefaultDotEnv.
func Load(dotenv string) (Config, error) {
	if dotenv == "" {
		dotenv = DefaultDotEnv
	}
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges the struct tags cannot express.
func (c Config) Validate() error {
	if c.RateLimit <= 0 {
		return fmt.Errorf("TBA_RATE_LIMIT must be positive, got %v", c.RateLimit)
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("TBA_RATE_BURST must be at least 1, got %d", c.RateBurst)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level is the configured log level.
func (c Config) Level() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("TBA_LOG_LEVEL: %w", err)
	}
	return l, nil
}
