package hooks

import (
	"fmt"

	"github.com/fyrsmithlabs/claude-agent/internal/config"
	"github.com/fyrsmithlabs/claude-agent/internal/detection"
	"github.com/fyrsmithlabs/claude-agent/internal/security"
)

// Config is what a hook process needs to judge commands.
type Config struct {
	Stack         string
	ExtraCommands []string
}

// DefaultConfig returns the config for a project with no config file:
// the detected stack and no extra commands.
func DefaultConfig(projectDir string) *Config {
	return &Config{Stack: detection.DetectStack(projectDir)}
}

// LoadConfig builds the hook config from the project's config file and
// environment, falling back to stack detection. o carries the stack and
// config file the parent run resolved.
func LoadConfig(projectDir string, o config.Overrides) (*Config, error) {
	cfg, err := config.Load(projectDir, o)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	hc := DefaultConfig(projectDir)
	if cfg.Stack != "" {
		hc.Stack = cfg.Stack
	}
	hc.ExtraCommands = cfg.Security.ExtraCommands
	return hc, nil
}

// SecurityConfig converts to the validator config.
func (c *Config) SecurityConfig() security.Config {
	return security.Config{Stack: c.Stack, ExtraCommands: c.ExtraCommands}
}

// NewDefaultManager wires the standard handlers: Bash security for
// PreToolUse and, when validator is true, the verdict reminder for Stop.
func NewDefaultManager(c *Config, events security.EventSink, validator bool) *Manager {
	m := NewManager()
	m.Register(EventPreToolUse, BashSecurity(security.NewValidator(c.SecurityConfig(), events)))
	if validator {
		m.Register(EventStop, ValidatorStop())
	}
	return m
}
