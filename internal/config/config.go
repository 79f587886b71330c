// Package config provides configuration management for the dashboard.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingAddr              = errors.New("server.addr is required")
	ErrInvalidMaxUpload         = errors.New("server.max_upload_mb must be at least 1")
	ErrInvalidReadTimeout       = errors.New("server.read_timeout_sec must be at least 1")
	ErrInvalidThreshold         = errors.New("analysis.risk_threshold must be within (0, 10]")
	ErrInvalidHistogramBins     = errors.New("analysis.histogram_bins must be between 1 and 100")
	ErrInvalidTopCWE            = errors.New("analysis.top_cwe must be at least 1")
	ErrInvalidExportFilename    = errors.New("export.filename must end with .csv")
	ErrInvalidMaxAttempts       = errors.New("source.retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("source.retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("source.retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("source.retry.timeout_sec must be at least 1")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
)

// Config represents the complete dashboard configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Export   ExportConfig   `yaml:"export"`
	Logging  LoggingConfig  `yaml:"logging"`
	Source   SourceConfig   `yaml:"source"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// ServerConfig contains HTTP dashboard settings.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	Title          string `yaml:"title"`
	MaxUploadMb    int    `yaml:"max_upload_mb"`
	ReadTimeoutSec int    `yaml:"read_timeout_sec"`
}

// AnalysisConfig tunes the aggregations.
type AnalysisConfig struct {
	RiskThreshold float64 `yaml:"risk_threshold"`
	HistogramBins int     `yaml:"histogram_bins"`
	TopCWE        int     `yaml:"top_cwe"`
}

// ExportConfig defines the CSV download.
type ExportConfig struct {
	Filename string `yaml:"filename"`
}

// SourceConfig controls how report inputs are loaded from paths or URLs.
type SourceConfig struct {
	Retry     RetryPolicy `yaml:"retry"`
	MaxSizeKb int         `yaml:"max_size_kb"`
}

// RetryPolicy defines retry behavior for remote sources.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8501",
			Title:          "CVSS & CWE Risk Prioritization Dashboard",
			MaxUploadMb:    32,
			ReadTimeoutSec: 30,
		},
		Analysis: AnalysisConfig{
			RiskThreshold: 7.0,
			HistogramBins: 10,
			TopCWE:        10,
		},
		Export: ExportConfig{
			Filename: "high_risk_vulnerabilities.csv",
		},
		Source: SourceConfig{
			Retry: RetryPolicy{
				MaxAttempts:       3,
				InitialDelayMs:    500,
				MaxDelayMs:        30000,
				BackoffMultiplier: 2.0,
				TimeoutSec:        30,
			},
			MaxSizeKb: 32 * 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from YAML file. Keys absent from the file keep their defaults.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return ErrMissingAddr
	}

	if c.Server.MaxUploadMb < 1 {
		return ErrInvalidMaxUpload
	}

	if c.Server.ReadTimeoutSec < 1 {
		return ErrInvalidReadTimeout
	}

	if c.Analysis.RiskThreshold <= 0 || c.Analysis.RiskThreshold > 10 {
		return ErrInvalidThreshold
	}

	if c.Analysis.HistogramBins < 1 || c.Analysis.HistogramBins > 100 {
		return ErrInvalidHistogramBins
	}

	if c.Analysis.TopCWE < 1 {
		return ErrInvalidTopCWE
	}

	if !strings.HasSuffix(strings.ToLower(c.Export.Filename), ".csv") {
		return ErrInvalidExportFilename
	}

	if err := c.Source.Retry.Validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// Validate checks the retry policy bounds.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if rp.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if rp.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if rp.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	return nil
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMb) << 20
}

// ReadTimeout returns the HTTP read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Addr: %s, Threshold: %.1f, Bins: %d, TopCWE: %d}",
		c.Server.Addr,
		c.Analysis.RiskThreshold,
		c.Analysis.HistogramBins,
		c.Analysis.TopCWE,
	)
}
