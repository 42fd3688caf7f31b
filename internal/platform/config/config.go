// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

type Config struct {
	HTTPAddr      string `env:"TURNKEEP_HTTP_ADDR" envDefault:":8080"`
	CORSOrigin    string `env:"TURNKEEP_CORS_ORIGIN" envDefault:"*"`
	StreamAddr    string `env:"TURNKEEP_STREAM_ADDR" envDefault:":8081"`
	StreamEnabled bool   `env:"TURNKEEP_STREAM_ENABLED" envDefault:"true"`
	// DBDSN selects the postgres journal. Empty keeps the journal in memory.
	DBDSN         string        `env:"TURNKEEP_DB_DSN"`
	TurnTimeout   time.Duration `env:"TURNKEEP_TURN_TIMEOUT" envDefault:"30s"`
	RoundInterval time.Duration `env:"TURNKEEP_ROUND_INTERVAL" envDefault:"1s"`
	LogLevel      string        `env:"TURNKEEP_LOG_LEVEL" envDefault:"info"`
	MCPStdio      bool          `env:"TURNKEEP_MCP_STDIO" envDefault:"false"`
	JournalBuffer int           `env:"TURNKEEP_JOURNAL_BUFFER" envDefault:"256"`

	OTelEndpoint    string  `env:"TURNKEEP_OTEL_ENDPOINT"`
	OTelSampleRatio float64 `env:"TURNKEEP_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("TURNKEEP_HTTP_ADDR must not be empty")
	}
	if c.StreamEnabled && c.StreamAddr == "" {
		return fmt.Errorf("TURNKEEP_STREAM_ADDR must not be empty while the stream is enabled")
	}
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("TURNKEEP_TURN_TIMEOUT must be positive, got %s", c.TurnTimeout)
	}
	if c.RoundInterval <= 0 {
		return fmt.Errorf("TURNKEEP_ROUND_INTERVAL must be positive, got %s", c.RoundInterval)
	}
	if c.JournalBuffer <= 0 {
		return fmt.Errorf("TURNKEEP_JOURNAL_BUFFER must be positive, got %d", c.JournalBuffer)
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("TURNKEEP_OTEL_SAMPLE_RATIO must be within [0, 1], got %v", c.OTelSampleRatio)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("TURNKEEP_LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the configured log level, falling back to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
