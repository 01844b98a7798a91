package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"analastock/internal/fetch"
	"analastock/internal/quota"
)

// Data modes.
const (
	ModeLive   = "live"
	ModeSample = "sample"
)

const defaultHeadroom = 75

// QuotaConfig caps one provider's calls per window. HeadroomPercent keeps a
// safety margin below the provider's advertised limit so a second process or
// a miscount cannot push us over.
type QuotaConfig struct {
	Limit           int `yaml:"limit"`
	WindowSeconds   int `yaml:"window_seconds"`
	HeadroomPercent int `yaml:"headroom_percent"`
}

// Config holds all application configuration.
type Config struct {
	Store struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"store"`
	Data struct {
		Mode  string `yaml:"mode"` // live or sample
		Proxy string `yaml:"proxy"`
	} `yaml:"data"`
	RapidAPI struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"rapidapi"`
	Quotas   map[string]QuotaConfig `yaml:"quotas"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		RunOnStart  bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Backoff struct {
		BaseMS         int `yaml:"base_ms"`
		MaxMS          int `yaml:"max_ms"`
		MaxAttempts    int `yaml:"max_attempts"`
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"backoff"`
	Workers  int    `yaml:"workers"`
	LogLevel string `yaml:"log_level"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file is not an error; defaults cover everything.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("RAPIDAPI_KEY"); v != "" {
		cfg.RapidAPI.APIKey = v
	}
	if v := os.Getenv("ANALASTOCK_DATA_MODE"); v != "" {
		cfg.Data.Mode = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Data.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		cfg.Schedule.RefreshCron = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Defaults
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "data/analastock.db"
	}
	if cfg.Data.Mode == "" {
		cfg.Data.Mode = ModeLive
	}
	if cfg.Schedule.RefreshCron == "" {
		// Weekday evenings, after the US close.
		cfg.Schedule.RefreshCron = "0 30 22 * * 1-5"
	}
	if cfg.Backoff.BaseMS == 0 {
		cfg.Backoff.BaseMS = int(fetch.DefaultPolicy.Base / time.Millisecond)
	}
	if cfg.Backoff.MaxMS == 0 {
		cfg.Backoff.MaxMS = int(fetch.DefaultPolicy.Max / time.Millisecond)
	}
	if cfg.Backoff.MaxAttempts == 0 {
		cfg.Backoff.MaxAttempts = fetch.DefaultPolicy.MaxAttempts
	}
	if cfg.Backoff.TimeoutSeconds == 0 {
		cfg.Backoff.TimeoutSeconds = 60
	}
	if cfg.Workers == 0 {
		cfg.Workers = 3
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Quotas == nil {
		cfg.Quotas = map[string]QuotaConfig{
			"yahoo":    {Limit: 120, WindowSeconds: 3600},
			"rapidapi": {Limit: 500, WindowSeconds: 30 * 24 * 3600},
		}
	}

	return cfg, nil
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.Data.Mode != ModeLive && c.Data.Mode != ModeSample {
		return fmt.Errorf("data.mode must be %q or %q, got %q", ModeLive, ModeSample, c.Data.Mode)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Backoff.MaxAttempts < 1 {
		return fmt.Errorf("backoff.max_attempts must be positive")
	}
	if c.Schedule.RefreshCron == "" {
		return fmt.Errorf("schedule.refresh_cron is required")
	}
	for name, q := range c.Quotas {
		if q.Limit <= 0 {
			return fmt.Errorf("quotas.%s.limit must be positive", name)
		}
		if q.WindowSeconds <= 0 {
			return fmt.Errorf("quotas.%s.window_seconds must be positive", name)
		}
		if q.HeadroomPercent < 0 || q.HeadroomPercent > 100 {
			return fmt.Errorf("quotas.%s.headroom_percent must be between 0 and 100", name)
		}
	}
	return nil
}

// Budgets derives the effective per-provider budgets, with headroom applied
// to each configured limit.
func (c *Config) Budgets() map[string]quota.Budget {
	out := make(map[string]quota.Budget, len(c.Quotas))
	for name, q := range c.Quotas {
		h := q.HeadroomPercent
		if h == 0 {
			h = defaultHeadroom
		}
		limit := q.Limit * h / 100
		if limit < 1 {
			limit = 1
		}
		out[name] = quota.Budget{
			Limit:  limit,
			Window: time.Duration(q.WindowSeconds) * time.Second,
		}
	}
	return out
}

// Policy returns the retry policy for price fetches.
func (c *Config) Policy() fetch.Policy {
	return fetch.Policy{
		Base:        time.Duration(c.Backoff.BaseMS) * time.Millisecond,
		Max:         time.Duration(c.Backoff.MaxMS) * time.Millisecond,
		MaxAttempts: c.Backoff.MaxAttempts,
	}
}

// FetchTimeout returns the per-attempt timeout for provider calls.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Backoff.TimeoutSeconds) * time.Second
}
