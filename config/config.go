package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"crypto-risk-engine/internal/correlation"
	"crypto-risk-engine/internal/engine"
	"crypto-risk-engine/internal/exit"
	"crypto-risk-engine/internal/risk"
	"crypto-risk-engine/internal/sizing"
)

// Config is the root configuration for the decision engine and its
// harness. Every section has a working default, so an empty file or no
// file at all yields a runnable setup.
type Config struct {
	Engine      engine.Config      `json:"engine"`
	Account     risk.AccountConfig `json:"account"`
	Sizing      sizing.Config      `json:"sizing"`
	Exit        exit.Config        `json:"exit"`
	Correlation correlation.Config `json:"correlation"`
	Logging     LoggingConfig      `json:"logging"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout or stderr
	JSONFormat bool   `json:"jsonFormat"`
}

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine:      engine.DefaultConfig(),
		Account:     risk.DefaultAccountConfig(),
		Sizing:      sizing.DefaultConfig(),
		Exit:        exit.DefaultConfig(),
		Correlation: correlation.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}

// Load builds the config from defaults, the optional JSON file at path
// and environment overrides, in that order of precedence. A missing file
// is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func (c *Config) applyEnvOverrides() {
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Output = getEnvOrDefault("LOG_OUTPUT", c.Logging.Output)
	c.Logging.JSONFormat = getEnvOrDefault("LOG_JSON", boolString(c.Logging.JSONFormat)) == "true"

	c.Account.MaxOpenPositions = getEnvIntOrDefault("MAX_OPEN_POSITIONS", c.Account.MaxOpenPositions)
	c.Account.MaxDailyDrawdown = getEnvFloatOrDefault("MAX_DAILY_DRAWDOWN", c.Account.MaxDailyDrawdown)
	c.Account.MaxConsecutiveLosses = getEnvIntOrDefault("MAX_CONSECUTIVE_LOSSES", c.Account.MaxConsecutiveLosses)

	c.Engine.MaxCorrelatedPositions = getEnvIntOrDefault("MAX_CORRELATED_POSITIONS", c.Engine.MaxCorrelatedPositions)
	c.Correlation.CacheTTLMinutes = getEnvIntOrDefault("CORRELATION_CACHE_TTL_MINUTES", c.Correlation.CacheTTLMinutes)
}

// Validate delegates to every section validator.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	if err := c.Account.Validate(); err != nil {
		return fmt.Errorf("account config: %w", err)
	}
	if err := c.Sizing.Validate(); err != nil {
		return fmt.Errorf("sizing config: %w", err)
	}
	if err := c.Exit.Validate(); err != nil {
		return fmt.Errorf("exit config: %w", err)
	}
	if err := c.Correlation.Validate(); err != nil {
		return fmt.Errorf("correlation config: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// GenerateSampleConfig writes the default configuration as indented JSON,
// ready to edit.
func GenerateSampleConfig(filename string) error {
	data, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
