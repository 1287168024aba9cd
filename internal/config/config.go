// Package config loads and validates poststudio configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all poststudio configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// Upstream completion service
	LLM LLMConfig `yaml:"llm"`

	// Request quota enforcement
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LLMConfig configures the completion backend.
type LLMConfig struct {
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	Timeout           string  `yaml:"timeout"`
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float64 `yaml:"temperature"`
	StreamIdleTimeout string  `yaml:"stream_idle_timeout"` // 0/empty disables the idle watchdog
}

// RateLimitConfig configures the sliding-window request quota.
type RateLimitConfig struct {
	MaxRequests int    `yaml:"max_requests"`
	Window      string `yaml:"window"`
	// ChargeFailures keeps the observed behavior of charging quota before the
	// network round-trip even when the completion fails. Set false to refund
	// failed calls.
	ChargeFailures *bool  `yaml:"charge_failures"`
	StorePath      string `yaml:"store_path"` // optional sqlite path; empty keeps buckets in memory only
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	Enabled    bool            `yaml:"enabled"`
	Dir        string          `yaml:"dir"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	charge := true
	return &Config{
		Name:    "poststudio",
		Version: "1.0.0",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     "30s",
			ShutdownTimeout: "10s",
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     "2m",
			MaxTokens:   500,
			Temperature: 0.7,
		},
		RateLimit: RateLimitConfig{
			MaxRequests:    10,
			Window:         "1h",
			ChargeFailures: &charge,
		},
		Logging: LoggingConfig{
			Enabled: false,
			Dir:     "logs",
			Level:   "info",
		},
	}
}

// Load reads configuration from a YAML file, applies env overrides, and
// validates. A missing file yields defaults with env overrides applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables override file settings.
// OPENAI_API_KEY wins over the file key so deployments never need a key on disk.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if base := os.Getenv("POSTSTUDIO_BASE_URL"); base != "" {
		c.LLM.BaseURL = base
	}
	if model := os.Getenv("POSTSTUDIO_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if addr := os.Getenv("POSTSTUDIO_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr required")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url required")
	}
	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("rate_limit.max_requests must be >= 1")
	}
	if _, err := parseDuration(c.RateLimit.Window, time.Hour); err != nil {
		return fmt.Errorf("rate_limit.window: %w", err)
	}
	if _, err := parseDuration(c.LLM.Timeout, 2*time.Minute); err != nil {
		return fmt.Errorf("llm.timeout: %w", err)
	}
	return nil
}

// Window returns the parsed rate-limit window.
func (c *Config) Window() time.Duration {
	d, _ := parseDuration(c.RateLimit.Window, time.Hour)
	return d
}

// LLMTimeout returns the parsed upstream request timeout.
func (c *Config) LLMTimeout() time.Duration {
	d, _ := parseDuration(c.LLM.Timeout, 2*time.Minute)
	return d
}

// StreamIdleTimeout returns the parsed idle watchdog duration, 0 when disabled.
func (c *Config) StreamIdleTimeout() time.Duration {
	if c.LLM.StreamIdleTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.LLM.StreamIdleTimeout)
	if err != nil {
		return 0
	}
	return d
}

// ShutdownTimeout returns the parsed graceful-shutdown deadline.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
	return d
}

// ChargeFailures reports whether failed completions consume quota.
func (c *Config) ChargeFailures() bool {
	if c.RateLimit.ChargeFailures == nil {
		return true
	}
	return *c.RateLimit.ChargeFailures
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", s)
	}
	return d, nil
}
