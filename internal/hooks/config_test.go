package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/claude-agent/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", "[project]\n")

	c := DefaultConfig(dir)

	assert.Equal(t, "python", c.Stack)
	assert.Empty(t, c.ExtraCommands)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".claude-agent.yaml", `
stack: python
security:
  extra_commands: [make, docker]
`)

	c, err := LoadConfig(dir, config.Overrides{})

	require.NoError(t, err)
	assert.Equal(t, "python", c.Stack)
	assert.Equal(t, []string{"make", "docker"}, c.ExtraCommands)
}

func TestLoadConfig_NoFileDetectsStack(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", "{}")

	c, err := LoadConfig(dir, config.Overrides{})

	require.NoError(t, err)
	assert.Equal(t, "node", c.Stack)
	assert.Empty(t, c.ExtraCommands)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".claude-agent.yaml", "stack: node\n")
	t.Setenv("CLAUDE_AGENT_STACK", "python")

	c, err := LoadConfig(dir, config.Overrides{})

	require.NoError(t, err)
	assert.Equal(t, "python", c.Stack)
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", "{}")
	elsewhere := t.TempDir()
	writeFile(t, elsewhere, "agent.yaml", "security:\n  extra_commands: [make]\n")

	c, err := LoadConfig(dir, config.Overrides{
		Stack:      "python",
		ConfigPath: filepath.Join(elsewhere, "agent.yaml"),
	})

	require.NoError(t, err)
	assert.Equal(t, "python", c.Stack)
	assert.Equal(t, []string{"make"}, c.ExtraCommands)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".claude-agent.yaml", "stack: [unclosed\n")

	_, err := LoadConfig(dir, config.Overrides{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".claude-agent.yaml", "stack: cobol\n")

	_, err := LoadConfig(dir, config.Overrides{})

	require.Error(t, err)
}

func TestConfig_SecurityConfig(t *testing.T) {
	c := &Config{Stack: "python", ExtraCommands: []string{"make"}}

	sc := c.SecurityConfig()

	assert.Equal(t, "python", sc.Stack)
	assert.Equal(t, []string{"make"}, sc.ExtraCommands)
}

func TestNewDefaultManager_ExtraCommandsAllowed(t *testing.T) {
	ctx := context.Background()
	m := NewDefaultManager(&Config{Stack: "node", ExtraCommands: []string{"make"}}, nil, false)

	out, err := m.Execute(ctx, EventPreToolUse, bashInput("make build"))
	require.NoError(t, err)
	assert.Empty(t, out.Decision)

	out, err = m.Execute(ctx, EventPreToolUse, bashInput("docker run alpine"))
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, out.Decision)
}

func TestNewDefaultManager_StopOnlyForValidator(t *testing.T) {
	ctx := context.Background()
	in := &Input{}

	out, err := NewDefaultManager(&Config{Stack: "node"}, nil, false).Execute(ctx, EventStop, in)
	require.NoError(t, err)
	assert.Empty(t, out.Decision)

	out, err = NewDefaultManager(&Config{Stack: "node"}, nil, true).Execute(ctx, EventStop, in)
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, out.Decision)
}
