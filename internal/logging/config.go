// internal/logging/config.go
package logging

import (
	"fmt"
	"path/filepath"
	"regexp"

	"go.uber.org/zap/zapcore"
)

const (
	// LogDirName is the log directory relative to the project directory.
	LogDirName = ".claude-agent/logs"
	// LogFileName is the active JSONL log file.
	LogFileName = "agent.log"
	// StatsFileName holds per-session statistics.
	StatsFileName = "sessions.json"
)

// Config holds logging configuration.
type Config struct {
	Enabled bool          `koanf:"enabled"`
	Level   zapcore.Level `koanf:"level"`

	// Dir is the directory holding agent.log and sessions.json.
	Dir string `koanf:"dir"`

	MaxSizeMB int `koanf:"max_size_mb"`
	MaxFiles  int `koanf:"max_files"`

	// Console mirrors events to stderr in a compact format.
	Console bool `koanf:"console"`
	// OTEL tees entries into the OpenTelemetry log provider when one is given.
	OTEL bool `koanf:"otel"`

	IncludeToolResults     bool `koanf:"include_tool_results"`
	IncludeAllowedCommands bool `koanf:"include_allowed_commands"`
	MaxSummaryLength       int  `koanf:"max_summary_length"`

	Redaction RedactionConfig `koanf:"redaction"`
}

// RedactionConfig controls sensitive data redaction.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns the defaults for a project directory.
func NewDefaultConfig(projectDir string) *Config {
	return &Config{
		Enabled:            true,
		Level:              zapcore.InfoLevel,
		Dir:                filepath.Join(projectDir, LogDirName),
		MaxSizeMB:          10,
		MaxFiles:           5,
		IncludeToolResults: true,
		MaxSummaryLength:   500,
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "api_key",
				"authorization", "credential", "private_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
				`(?i)(password|token|secret)=\S+`,
				`sk-ant-[A-Za-z0-9_-]+`,
			},
		},
	}
}

// FilePath returns the active log file path.
func (c *Config) FilePath() string {
	return filepath.Join(c.Dir, LogFileName)
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Enabled && c.Dir == "" {
		return fmt.Errorf("log dir is required when logging is enabled")
	}
	if c.MaxSizeMB <= 0 {
		return fmt.Errorf("max_size_mb must be > 0, got %d", c.MaxSizeMB)
	}
	if c.MaxFiles < 1 {
		return fmt.Errorf("max_files must be >= 1, got %d", c.MaxFiles)
	}
	if c.MaxSummaryLength < 10 {
		return fmt.Errorf("max_summary_length must be >= 10, got %d", c.MaxSummaryLength)
	}

	if c.Redaction.Enabled {
		for _, pattern := range c.Redaction.Patterns {
			if len(pattern) > 200 {
				return fmt.Errorf("redaction pattern too long (max 200 chars): %q", pattern)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", pattern, err)
			}
		}
	}

	return nil
}
