// internal/config/loader.go
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix scopes environment overrides, e.g.
	// CLAUDE_AGENT_AGENT__MODEL -> agent.model.
	EnvPrefix = "CLAUDE_AGENT_"
)

// FileNames are the config files searched in the project directory, in order.
var FileNames = []string{".claude-agent.yaml", ".claude-agent.yml"}

// defaultsYAML seeds koanf before the project file is layered on top.
const defaultsYAML = `
features: 50
review: false
agent:
  model: ` + DefaultModel + `
  max_iterations: 0
  max_turns: 1000
  auto_continue_delay: 3
  session_timeout: ""
  claude_path: claude
security:
  extra_commands: []
validator:
  enabled: true
  model: ""
  max_rejections: 3
  max_turns: 75
architecture:
  enabled: true
  required: false
logging:
  enabled: true
  level: info
  include_tool_results: true
  include_allowed_commands: false
  max_size_mb: 10
  max_files: 5
metrics:
  file: drift-metrics.json
  velocity_relative: 0.10
  velocity_absolute: 0.5
  epsilon: 0.01
telemetry:
  enabled: false
  endpoint: localhost:4317
  protocol: grpc
  insecure: true
  sampling_rate: 1.0
  export_interval: 15s
`

// ParseError reports a config file that is not valid YAML.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: YAML syntax error at line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: YAML syntax error: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

func newParseError(path string, err error) *ParseError {
	pe := &ParseError{Path: path, Err: err}
	if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
		pe.Line, _ = strconv.Atoi(m[1])
	}
	return pe
}

// Overrides carries CLI flag values. Zero values leave the lower layers
// untouched; pointer fields distinguish "unset" from zero.
type Overrides struct {
	ConfigPath       string
	SpecFile         string
	Goal             string
	Features         *int
	Stack            string
	Model            string
	MaxIterations    *int
	Review           bool
	SkipArchitecture bool
}

// FindFile returns the project config file path, or "" when none exists.
func FindFile(projectDir string) string {
	for _, name := range FileNames {
		path := filepath.Join(projectDir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load merges configuration for a project.
//
// Precedence (highest to lowest):
//  1. CLI overrides
//  2. Environment variables (CLAUDE_AGENT_ prefix, "__" separates sections)
//  3. The project file (.claude-agent.yaml / .yml or Overrides.ConfigPath)
//  4. Built-in defaults
func Load(projectDir string, o Overrides) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultsYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := o.ConfigPath
	if path == "" {
		path = FindFile(projectDir)
	}
	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, newParseError(path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ProjectDir = projectDir
	applyOverrides(&cfg, o)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps CLAUDE_AGENT_VALIDATOR__MAX_REJECTIONS to validator.max_rejections.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.SpecFile != "" {
		cfg.SpecFile = o.SpecFile
	}
	if o.Goal != "" {
		cfg.Goal = o.Goal
	}
	if o.Features != nil {
		cfg.Features = *o.Features
	}
	if o.Stack != "" {
		cfg.Stack = o.Stack
	}
	if o.Model != "" {
		cfg.Agent.Model = o.Model
	}
	if o.MaxIterations != nil {
		cfg.Agent.MaxIterations = *o.MaxIterations
	}
	if o.Review {
		cfg.Review = true
	}
	if o.SkipArchitecture {
		cfg.SkipArchitecture = true
	}
}

// readConfigFile reads a config file after checking its size.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return io.ReadAll(f)
}

// LoadFileKeys parses a config file on its own and returns its top-level
// keys. Used by doctor to check syntax and spot unknown keys.
func LoadFileKeys(path string) ([]string, error) {
	content, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, newParseError(path, err)
	}
	keys := make([]string, 0, len(k.Raw()))
	for key := range k.Raw() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// UnknownKeys returns the keys that claude-agent does not recognise.
func UnknownKeys(keys []string) []string {
	var unknown []string
	for _, key := range keys {
		if !slices.Contains(knownKeys, key) {
			unknown = append(unknown, key)
		}
	}
	return unknown
}

// IsParseError reports whether err is a YAML syntax error.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
