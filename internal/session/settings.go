package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/claude-agent/internal/fileutil"
)

// SettingsFileName is written into the project directory before every
// session.
const SettingsFileName = ".claude_settings.json"

// PuppeteerTools are the browser automation MCP tools agents may use.
var PuppeteerTools = []string{
	"mcp__puppeteer__puppeteer_navigate",
	"mcp__puppeteer__puppeteer_screenshot",
	"mcp__puppeteer__puppeteer_click",
	"mcp__puppeteer__puppeteer_fill",
	"mcp__puppeteer__puppeteer_select",
	"mcp__puppeteer__puppeteer_hover",
	"mcp__puppeteer__puppeteer_evaluate",
}

// BuiltinTools are the Claude Code tools agents may use.
var BuiltinTools = []string{"Read", "Write", "Edit", "Glob", "Grep", "Bash"}

// Settings is the on-disk shape of .claude_settings.json.
type Settings struct {
	Sandbox     SandboxSettings       `json:"sandbox"`
	Permissions PermissionSettings    `json:"permissions"`
	Hooks       map[string][]HookRule `json:"hooks,omitempty"`
}

// SandboxSettings enables OS level isolation of Bash.
type SandboxSettings struct {
	Enabled                  bool `json:"enabled"`
	AutoAllowBashIfSandboxed bool `json:"autoAllowBashIfSandboxed"`
}

// PermissionSettings restricts file tools to the project directory.
type PermissionSettings struct {
	DefaultMode string   `json:"defaultMode"`
	Allow       []string `json:"allow"`
}

// HookRule binds hook commands to a tool matcher.
type HookRule struct {
	Matcher string        `json:"matcher,omitempty"`
	Hooks   []HookCommand `json:"hooks"`
}

// HookCommand is a shell command Claude Code runs for a hook event.
type HookCommand struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// Hooks selects the hooks installed for a session.
type Hooks struct {
	// Executable is the claude-agent binary the hook commands invoke.
	// Empty disables hooks entirely.
	Executable string
	// Stack and ConfigPath are handed to the hook process so it judges
	// commands against the same allowlist as the run. Empty values leave
	// the hook to resolve them from the session's working directory.
	Stack      string
	ConfigPath string
	// Validator adds the Stop hook that demands a verdict.
	Validator bool
}

// command returns the shell command that runs the named hook subcommand.
func (h Hooks) command(name string) string {
	parts := []string{shellQuote(h.Executable), "hook", name}
	if h.Stack != "" && name == "pre-tool-use" {
		parts = append(parts, "--stack", shellQuote(h.Stack))
	}
	if h.ConfigPath != "" {
		parts = append(parts, "--config", shellQuote(h.ConfigPath))
	}
	return strings.Join(parts, " ")
}

// NewSettings builds the settings for a session.
func NewSettings(h Hooks) *Settings {
	allow := []string{
		"Read(./**)",
		"Write(./**)",
		"Edit(./**)",
		"Glob(./**)",
		"Grep(./**)",
		"Bash(*)",
	}
	allow = append(allow, PuppeteerTools...)

	s := &Settings{
		Sandbox: SandboxSettings{Enabled: true, AutoAllowBashIfSandboxed: true},
		Permissions: PermissionSettings{
			DefaultMode: "acceptEdits",
			Allow:       allow,
		},
	}
	if h.Executable == "" {
		return s
	}

	s.Hooks = map[string][]HookRule{
		"PreToolUse": {{
			Matcher: "Bash",
			Hooks:   []HookCommand{{Type: "command", Command: h.command("pre-tool-use")}},
		}},
	}
	if h.Validator {
		s.Hooks["Stop"] = []HookRule{{
			Hooks: []HookCommand{{Type: "command", Command: h.command("stop")}},
		}}
	}
	return s
}

// WriteSettings writes .claude_settings.json into dir, creating dir when
// needed, and returns the file's path.
func WriteSettings(dir string, h Hooks) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create project dir: %w", err)
	}
	path := filepath.Join(dir, SettingsFileName)
	if err := fileutil.AtomicWriteJSON(path, NewSettings(h)); err != nil {
		return "", fmt.Errorf("write %s: %w", SettingsFileName, err)
	}
	return path, nil
}

// shellQuote single-quotes s when it holds characters the shell would
// interpret.
func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`&|;<>()*?[]#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
