// Package config loads the client configuration from TOML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full client configuration.
type Config struct {
	StudentID string    `toml:"student_id"`
	Endpoints Endpoints `toml:"endpoints"`
	Timeouts  Timeouts  `toml:"timeouts"`
	Retry     Retry     `toml:"retry"`
	Telemetry Telemetry `toml:"telemetry"`
	Otel      Otel      `toml:"otel"`
}

// Endpoints are the base URLs of the remote services. They usually point at
// the same backend but can be split.
type Endpoints struct {
	Inference   string `toml:"inference"`
	Execution   string `toml:"execution"`
	Persistence string `toml:"persistence"`
}

type Timeouts struct {
	RequestTimeoutMs int64 `toml:"request_timeout_ms"`
}

type Retry struct {
	MaxRetries        uint64 `toml:"max_retries"`
	InitialIntervalMs int64  `toml:"initial_interval_ms"`
	MaxIntervalMs     int64  `toml:"max_interval_ms"`
}

type Telemetry struct {
	TickIntervalMs   int64 `toml:"tick_interval_ms"`
	HealthIntervalMs int64 `toml:"health_interval_ms"`
}

type Otel struct {
	Enabled      bool   `toml:"enabled"`
	ExporterType string `toml:"exporter_type"`
	Endpoint     string `toml:"endpoint"`
	Insecure     bool   `toml:"insecure"`
	ServiceName  string `toml:"service_name"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		StudentID: "anonymous",
		Endpoints: Endpoints{
			Inference:   "http://localhost:5000",
			Execution:   "http://localhost:5000",
			Persistence: "http://localhost:5000",
		},
		Timeouts: Timeouts{RequestTimeoutMs: 60000},
		Retry: Retry{
			MaxRetries:        2,
			InitialIntervalMs: 250,
			MaxIntervalMs:     2000,
		},
		Telemetry: Telemetry{
			TickIntervalMs:   1000,
			HealthIntervalMs: 30000,
		},
		Otel: Otel{
			ExporterType: "none",
			ServiceName:  "codecoach",
		},
	}
}

// Load reads a TOML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if c.Endpoints.Inference == "" || c.Endpoints.Execution == "" || c.Endpoints.Persistence == "" {
		return fmt.Errorf("config: all endpoint base URLs must be set")
	}
	if c.Timeouts.RequestTimeoutMs <= 0 {
		return fmt.Errorf("config: request_timeout_ms must be positive")
	}
	if c.Telemetry.TickIntervalMs <= 0 {
		return fmt.Errorf("config: tick_interval_ms must be positive")
	}
	return nil
}

// RequestTimeout returns the per-request deadline.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeouts.RequestTimeoutMs) * time.Millisecond
}

// TickInterval returns the telemetry tick interval.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Telemetry.TickIntervalMs) * time.Millisecond
}

// HealthInterval returns the health sampling interval.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Telemetry.HealthIntervalMs) * time.Millisecond
}
