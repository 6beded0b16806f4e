package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr              string        `env:"RACETIME_ADDR" envDefault:":8080"`
	DatabasePath      string        `env:"RACETIME_DB_PATH" envDefault:"racetime.db"`
	JWTSecret         string        `env:"RACETIME_JWT_SECRET,required"`
	OperatorKey       string        `env:"RACETIME_OPERATOR_KEY,required"`
	MaxRecordsPerTeam int           `env:"RACETIME_MAX_RECORDS_PER_TEAM" envDefault:"15"`
	MaxBatchSize      int           `env:"RACETIME_MAX_BATCH_SIZE" envDefault:"50"`
	SessionLifetime   time.Duration `env:"RACETIME_SESSION_LIFETIME" envDefault:"24h"`
	LogLevel          string        `env:"RACETIME_LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("RACETIME_JWT_SECRET must be at least 16 bytes")
	}
	if c.MaxRecordsPerTeam <= 0 {
		return fmt.Errorf("RACETIME_MAX_RECORDS_PER_TEAM must be positive")
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("RACETIME_MAX_BATCH_SIZE must be positive")
	}
	return nil
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
