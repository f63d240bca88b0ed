// Package config resolves the fetcher's runtime configuration from
// config.json, falling back to defaults when the file is absent.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/yourneighborhoodchef/asinfetch/internal/logging"
)

// ConcurrencyControl shapes the adaptive ramp: how many fetches run at
// first, how long a quiet window must last before growing, and by how much.
type ConcurrencyControl struct {
	InitialConcurrent int     `json:"initial_concurrent"`
	ScaleUpDelay      float64 `json:"scale_up_delay"`
	ScaleIncrement    int     `json:"scale_increment"`
}

// ScaleUpDelayDuration converts the JSON seconds value to a Duration.
func (c ConcurrencyControl) ScaleUpDelayDuration() time.Duration {
	return time.Duration(c.ScaleUpDelay * float64(time.Second))
}

// Config is the resolved runtime configuration.
type Config struct {
	AllowProxy             bool               `json:"allow_proxy"`
	InitialSessionPoolSize int                `json:"initial_session_pool_size"`
	ConcurrencyControl     ConcurrencyControl `json:"concurrent_requests_control"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		AllowProxy:             false,
		InitialSessionPoolSize: 5,
		ConcurrencyControl: ConcurrencyControl{
			InitialConcurrent: 3,
			ScaleUpDelay:      0.0005,
			ScaleIncrement:    2,
		},
	}
}

// Load reads path as JSON over the defaults. A missing file is not an
// error; a present but unreadable or invalid file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logging.Infof("no config file at %s, using defaults", path)
		return cfg, applyEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Infof("loaded configuration from %s", path)
	return cfg, nil
}

// applyEnv lets the environment override individual file values. Callers
// load .env into the environment before this runs.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("ASINFETCH_ALLOW_PROXY"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ASINFETCH_ALLOW_PROXY: %w", err)
		}
		cfg.AllowProxy = allow
	}
	if v := os.Getenv("ASINFETCH_POOL_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ASINFETCH_POOL_SIZE: %w", err)
		}
		cfg.InitialSessionPoolSize = size
	}
	return nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.InitialSessionPoolSize <= 0 {
		return fmt.Errorf("initial_session_pool_size must be positive")
	}
	if c.ConcurrencyControl.InitialConcurrent <= 0 {
		return fmt.Errorf("initial_concurrent must be positive")
	}
	if c.ConcurrencyControl.ScaleUpDelay < 0 {
		return fmt.Errorf("scale_up_delay cannot be negative")
	}
	if c.ConcurrencyControl.ScaleIncrement <= 0 {
		return fmt.Errorf("scale_increment must be positive")
	}
	return nil
}
