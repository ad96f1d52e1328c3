// Package config loads orbitfolio settings from TOML files and the environment
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for orbitfolio
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Rates     RatesConfig     `toml:"rates"`
	Logging   LoggingConfig   `toml:"logging"`
	Simulator SimulatorConfig `toml:"simulator"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// RatesConfig holds the FX provider and cache configuration
type RatesConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	Period    string `toml:"period"`
	Timeout   string `toml:"timeout"`
	MaxAge    string `toml:"max_age"`
	RateLimit int    `toml:"rate_limit"`
}

// GetPeriod parses and returns the refresh period
func (c *RatesConfig) GetPeriod() time.Duration {
	return parseDuration(c.Period, 30*time.Minute)
}

// GetTimeout parses and returns the timeout duration
func (c *RatesConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// GetMaxAge parses the maximum table age. "0" disables the check; an
// unparseable value falls back to three periods.
func (c *RatesConfig) GetMaxAge() time.Duration {
	return parseDuration(c.MaxAge, 3*c.GetPeriod())
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(s) == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// SimulatorConfig holds the price simulator configuration
type SimulatorConfig struct {
	Jitter float64 `toml:"jitter"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Rates: RatesConfig{
			BaseURL:   "https://api.freecurrencyapi.com/v1",
			Period:    "30m",
			Timeout:   "10s",
			MaxAge:    "90m",
			RateLimit: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Simulator: SimulatorConfig{
			Jitter: 0.005,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if addr := os.Getenv("ORBITFOLIO_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if v := os.Getenv("ORBITFOLIO_RATES_BASE_URL"); v != "" {
		config.Rates.BaseURL = v
	}
	if v := os.Getenv("ORBITFOLIO_RATES_API_KEY"); v != "" {
		config.Rates.APIKey = v
	}
	if v := os.Getenv("ORBITFOLIO_RATES_PERIOD"); v != "" {
		config.Rates.Period = v
	}
	if v := os.Getenv("ORBITFOLIO_RATES_MAX_AGE"); v != "" {
		config.Rates.MaxAge = v
	}
	if v := os.Getenv("ORBITFOLIO_RATES_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Rates.RateLimit = n
		}
	}
	if level := os.Getenv("ORBITFOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	if c.Simulator.Jitter < 0 || c.Simulator.Jitter >= 1 {
		return fmt.Errorf("invalid simulator jitter %v", c.Simulator.Jitter)
	}
	if strings.TrimSpace(c.Rates.BaseURL) == "" {
		return fmt.Errorf("rates base_url must be set")
	}
	return nil
}
