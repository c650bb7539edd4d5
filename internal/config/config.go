// Package config loads docfang configuration from file, environment and
// defaults, and sets up logging.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the top-level configuration struct for docfang.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	StateDir string         `mapstructure:"state_dir"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Log      LogConfig      `mapstructure:"log"`
}

// AnalyzerConfig holds the external analyzer invocation settings.
type AnalyzerConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Timeout string   `mapstructure:"timeout"`
}

// LLMConfig holds the language-model provider settings for the improve
// stage.
type LLMConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	OllamaHost string `mapstructure:"ollama_host"`
}

// AuditConfig holds audit and planning thresholds.
type AuditConfig struct {
	// PlanThreshold is the highest rating still scheduled for improvement.
	PlanThreshold int `mapstructure:"plan_threshold"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// Default configuration values.
const (
	DefaultStateDir        = ".docfang"
	DefaultAnalyzerCommand = "docparse"
	DefaultAnalyzerTimeout = "60s"
	DefaultLLMProvider     = "anthropic"
	DefaultLLMModel        = "claude-3-5-sonnet-latest"
	DefaultOllamaHost      = "http://localhost:11434"
	DefaultPlanThreshold   = 2
	DefaultLogLevel        = "info"
)

// Rating bounds mirrored here so the plan threshold can be validated without
// importing the progress package.
const (
	ratingMin = 1
	ratingMax = 4
)

// Sentinel errors for configuration validation.
var (
	// ErrEmptyStateDir indicates the state directory is empty.
	ErrEmptyStateDir = errors.New("state_dir must not be empty")
	// ErrInvalidTimeout indicates the analyzer timeout is not a duration.
	ErrInvalidTimeout = errors.New("analyzer.timeout must be a duration")
	// ErrInvalidThreshold indicates the plan threshold is out of range.
	ErrInvalidThreshold = errors.New("audit.plan_threshold must be between 1 and 4")
	// ErrInvalidLogLevel indicates an unknown log level name.
	ErrInvalidLogLevel = errors.New("log.level must be one of debug, info, warn, error")
)

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return ErrEmptyStateDir
	}

	if c.Analyzer.Timeout != "" {
		_, err := time.ParseDuration(c.Analyzer.Timeout)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTimeout, c.Analyzer.Timeout)
		}
	}

	if c.Audit.PlanThreshold < ratingMin || c.Audit.PlanThreshold > ratingMax {
		return fmt.Errorf("%w: got %d", ErrInvalidThreshold, c.Audit.PlanThreshold)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogLevel, c.Log.Level)
	}

	return nil
}

// AnalyzerTimeout returns the parsed analyzer timeout. Validate must have
// accepted the config first.
func (c *Config) AnalyzerTimeout() time.Duration {
	if c.Analyzer.Timeout == "" {
		return 0
	}

	timeout, err := time.ParseDuration(c.Analyzer.Timeout)
	if err != nil {
		return 0
	}

	return timeout
}
