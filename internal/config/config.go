// Package config loads the adapter configuration from YAML or JSON5
// files with $include merging and environment expansion.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default endpoints for the Kiro deployment this adapter fronts.
const (
	DefaultEndpoint   = "https://codewhisperer.us-east-1.amazonaws.com/generateAssistantResponse"
	DefaultRefreshURL = "https://prod.us-east-1.auth.desktop.kiro.dev/refreshToken"
	DefaultModel      = "claude-sonnet-4-5-20250929"
)

// Config is the top-level configuration for the kiro adapter.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Auth    AuthConfig    `yaml:"auth"`
	Limits  LimitsConfig  `yaml:"limits"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Usage   UsageConfig   `yaml:"usage"`
}

// ServiceConfig locates the inference service.
type ServiceConfig struct {
	Endpoint     string `yaml:"endpoint"`
	ProfileARN   string `yaml:"profile_arn"`
	DefaultModel string `yaml:"default_model"`
}

// AuthConfig locates the credential material.
type AuthConfig struct {
	TokenPath  string `yaml:"token_path"`
	RefreshURL string `yaml:"refresh_url"`
	Watch      bool   `yaml:"watch"`
}

// LimitsConfig bounds request assembly and streaming.
type LimitsConfig struct {
	HistoryBytes    int           `yaml:"history_bytes"`
	ToolResultChars int           `yaml:"tool_result_chars"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	MaxRetries      int           `yaml:"max_retries"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

type UsageConfig struct {
	Path string `yaml:"path"`
}

// Load reads, merges, and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRaw(raw)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Service.Endpoint) == "" {
		c.Service.Endpoint = DefaultEndpoint
	}
	if strings.TrimSpace(c.Service.DefaultModel) == "" {
		c.Service.DefaultModel = DefaultModel
	}
	if strings.TrimSpace(c.Auth.TokenPath) == "" {
		c.Auth.TokenPath = defaultTokenPath()
	}
	if strings.TrimSpace(c.Auth.RefreshURL) == "" {
		c.Auth.RefreshURL = DefaultRefreshURL
	}
	if c.Limits.HistoryBytes == 0 {
		c.Limits.HistoryBytes = 200_000
	}
	if c.Limits.ToolResultChars == 0 {
		c.Limits.ToolResultChars = 8000
	}
	if c.Limits.IdleTimeout == 0 {
		c.Limits.IdleTimeout = 30 * time.Second
	}
	if c.Limits.MaxRetries == 0 {
		c.Limits.MaxRetries = 3
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9464"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1
	}
	if strings.TrimSpace(c.Usage.Path) == "" {
		c.Usage.Path = defaultUsagePath()
	}
}

// Validate checks field values after defaults have been applied.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Service.Endpoint); err != nil {
		return fmt.Errorf("service.endpoint: %w", err)
	}
	if c.Auth.RefreshURL != "" {
		if _, err := url.ParseRequestURI(c.Auth.RefreshURL); err != nil {
			return fmt.Errorf("auth.refresh_url: %w", err)
		}
	}
	if c.Limits.HistoryBytes <= 0 {
		return fmt.Errorf("limits.history_bytes must be positive, got %d", c.Limits.HistoryBytes)
	}
	if c.Limits.ToolResultChars <= 0 {
		return fmt.Errorf("limits.tool_result_chars must be positive, got %d", c.Limits.ToolResultChars)
	}
	if c.Limits.IdleTimeout <= 0 {
		return fmt.Errorf("limits.idle_timeout must be positive, got %v", c.Limits.IdleTimeout)
	}
	if c.Limits.MaxRetries < 0 {
		return fmt.Errorf("limits.max_retries must not be negative, got %d", c.Limits.MaxRetries)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("tracing.sampling_rate must be between 0 and 1, got %v", c.Tracing.SamplingRate)
	}
	return nil
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "kiro-auth-token.json"
	}
	return filepath.Join(home, ".aws", "sso", "cache", "kiro-auth-token.json")
}

func defaultUsagePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "kiro-usage.db"
	}
	return filepath.Join(home, ".kiro", "usage.db")
}
