// Package config provides configuration loading for claude-agent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/fyrsmithlabs/claude-agent/internal/detection"
)

// DefaultModel is the Claude model used when nothing else is configured.
const DefaultModel = "claude-opus-4-5-20251101"

// Config is the merged project configuration.
type Config struct {
	// ProjectDir is set by Load, never read from the file.
	ProjectDir string `koanf:"-"`

	SpecFile string `koanf:"spec_file"`
	Goal     string `koanf:"goal"`
	Features int    `koanf:"features"`
	Stack    string `koanf:"stack"`
	Review   bool   `koanf:"review"`

	// SkipArchitecture is a CLI-only switch.
	SkipArchitecture bool `koanf:"-"`

	Agent        AgentConfig        `koanf:"agent"`
	Security     SecurityConfig     `koanf:"security"`
	Validator    ValidatorConfig    `koanf:"validator"`
	Architecture ArchitectureConfig `koanf:"architecture"`
	Logging      LoggingConfig      `koanf:"logging"`
	Metrics      MetricsConfig      `koanf:"metrics"`
	Telemetry    TelemetryConfig    `koanf:"telemetry"`
}

// AgentConfig controls coding sessions.
type AgentConfig struct {
	Model string `koanf:"model"`
	// MaxIterations of 0 means unlimited.
	MaxIterations int `koanf:"max_iterations"`
	MaxTurns      int `koanf:"max_turns"`
	// AutoContinueDelay is in whole seconds.
	AutoContinueDelay int      `koanf:"auto_continue_delay"`
	SessionTimeout    Duration `koanf:"session_timeout"`
	ClaudePath        string   `koanf:"claude_path"`
}

// SecurityConfig extends the stack allowlist.
type SecurityConfig struct {
	ExtraCommands []string `koanf:"extra_commands"`
}

// ValidatorConfig controls validation sessions.
type ValidatorConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Model         string `koanf:"model"`
	MaxRejections int    `koanf:"max_rejections"`
	MaxTurns      int    `koanf:"max_turns"`
}

// ArchitectureConfig controls the architecture lock phase.
type ArchitectureConfig struct {
	Enabled  bool `koanf:"enabled"`
	Required bool `koanf:"required"`
}

// LoggingConfig mirrors the agent log options.
type LoggingConfig struct {
	Enabled                bool   `koanf:"enabled"`
	Level                  string `koanf:"level"`
	IncludeToolResults     bool   `koanf:"include_tool_results"`
	IncludeAllowedCommands bool   `koanf:"include_allowed_commands"`
	MaxSizeMB              int    `koanf:"max_size_mb"`
	MaxFiles               int    `koanf:"max_files"`
}

// MetricsConfig controls the drift metrics store.
type MetricsConfig struct {
	File             string  `koanf:"file"`
	VelocityRelative float64 `koanf:"velocity_relative"`
	VelocityAbsolute float64 `koanf:"velocity_absolute"`
	Epsilon          float64 `koanf:"epsilon"`
}

// TelemetryConfig controls OpenTelemetry trace and metric export.
type TelemetryConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
	// Protocol is "grpc" or "http/protobuf".
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	SamplingRate   float64  `koanf:"sampling_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// knownKeys are the top-level keys a config file may contain.
var knownKeys = []string{
	"spec_file", "goal", "features", "stack", "review",
	"agent", "security", "validator", "architecture", "logging", "metrics",
	"telemetry",
}

// ValidatorModel returns the validator model, falling back to the agent model.
func (c *Config) ValidatorModel() string {
	if c.Validator.Model != "" {
		return c.Validator.Model
	}
	return c.Agent.Model
}

// SpecPath returns spec_file resolved against the project directory.
func (c *Config) SpecPath() string {
	if c.SpecFile == "" {
		return ""
	}
	if filepath.IsAbs(c.SpecFile) {
		return c.SpecFile
	}
	return filepath.Join(c.ProjectDir, c.SpecFile)
}

// SpecContent returns the spec file contents when the file exists,
// otherwise the goal text.
func (c *Config) SpecContent() string {
	if path := c.SpecPath(); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return string(data)
		}
	}
	return c.Goal
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Features <= 0 {
		return fmt.Errorf("features must be > 0, got %d", c.Features)
	}
	if c.Stack != "" && !slices.Contains(detection.AvailableStacks(), c.Stack) {
		return fmt.Errorf("unknown stack %q (available: %v)", c.Stack, detection.AvailableStacks())
	}
	if c.Agent.Model == "" {
		return fmt.Errorf("agent.model is required")
	}
	if c.Agent.MaxIterations < 0 {
		return fmt.Errorf("agent.max_iterations must be >= 0, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent.max_turns must be > 0, got %d", c.Agent.MaxTurns)
	}
	if c.Agent.AutoContinueDelay < 0 {
		return fmt.Errorf("agent.auto_continue_delay must be >= 0, got %d", c.Agent.AutoContinueDelay)
	}
	if c.Validator.MaxRejections < 1 {
		return fmt.Errorf("validator.max_rejections must be >= 1, got %d", c.Validator.MaxRejections)
	}
	if c.Validator.MaxTurns <= 0 {
		return fmt.Errorf("validator.max_turns must be > 0, got %d", c.Validator.MaxTurns)
	}
	if c.Metrics.File == "" {
		return fmt.Errorf("metrics.file is required")
	}
	if c.Metrics.Epsilon <= 0 {
		return fmt.Errorf("metrics.epsilon must be > 0")
	}
	return nil
}
