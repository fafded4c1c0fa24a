package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServerConfig holds the daemon settings read from the environment. An
// empty address falls back to its default, so a listener is turned off with
// its *_DISABLED switch instead.
type ServerConfig struct {
	GRPCAddr          string        `env:"BALANCE_GRPC_ADDR"           envDefault:":50051"`
	HTTPAddr          string        `env:"BALANCE_HTTP_ADDR"           envDefault:":8080"`
	GRPCDisabled      bool          `env:"BALANCE_GRPC_DISABLED"`
	HTTPDisabled      bool          `env:"BALANCE_HTTP_DISABLED"`
	LogLevel          string        `env:"BALANCE_LOG_LEVEL"           envDefault:"info"`
	LogFormat         string        `env:"BALANCE_LOG_FORMAT"          envDefault:"text"`
	MaxConcurrentRuns int           `env:"BALANCE_MAX_CONCURRENT_RUNS" envDefault:"4"`
	ShutdownTimeout   time.Duration `env:"BALANCE_SHUTDOWN_TIMEOUT"    envDefault:"10s"`
}

// LoadServerConfig parses and validates the daemon settings. A disabled
// listener comes back with an empty address.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.GRPCDisabled {
		cfg.GRPCAddr = ""
	}
	if cfg.HTTPDisabled {
		cfg.HTTPAddr = ""
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid server config: %w", err)
	}
	return cfg, nil
}

func (c ServerConfig) Validate() error {
	if c.GRPCAddr == "" && c.HTTPAddr == "" {
		return fmt.Errorf("the gRPC and HTTP listeners cannot both be disabled")
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("invalid log format: %s (must be json, text, or console)", c.LogFormat)
	}
	if c.MaxConcurrentRuns < 1 {
		return fmt.Errorf("max concurrent runs must be at least 1, got %d", c.MaxConcurrentRuns)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}
