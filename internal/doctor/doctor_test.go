package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost answers LookPath and Run from tables.
type fakeHost struct {
	mu        sync.Mutex
	installed map[string]bool
	outputs   map[string]string
	failures  map[string]string
	calls     []string
}

func (h *fakeHost) lookPath(name string) (string, error) {
	if h.installed[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("not found")
}

func (h *fakeHost) run(_ context.Context, name string, args ...string) (string, string, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	h.mu.Lock()
	h.calls = append(h.calls, key)
	h.mu.Unlock()
	if msg, ok := h.failures[key]; ok {
		return "", msg, errors.New("exit status 1")
	}
	return h.outputs[key], "", nil
}

func (h *fakeHost) doctor() *Doctor {
	return &Doctor{LookPath: h.lookPath, Run: h.run, Timeout: DefaultTimeout}
}

func healthyNodeHost() *fakeHost {
	return &fakeHost{
		installed: map[string]bool{"claude": true, "git": true, "node": true, "npm": true},
		outputs: map[string]string{
			"claude --version": "1.0.3 (Claude Code)\n",
			"git --version":    "git version 2.43.0\n",
			"node --version":   "v20.11.1\n",
			"npm --version":    "10.2.4\n",
			"npm list -g puppeteer-mcp-server --depth=0": "/usr/lib\n└── puppeteer-mcp-server@0.7.2\n",
		},
		failures: map[string]string{},
	}
}

func TestCheck_HealthyNode(t *testing.T) {
	dir := t.TempDir()
	r := healthyNodeHost().doctor().Check(context.Background(), dir, "node")

	assert.True(t, r.Healthy())
	assert.Equal(t, "node", r.Stack)
	names := make([]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{NameClaude, NameGit, NameNode, NameNpm, NamePuppeteer, NameProject, NameConfig}, names)

	c, _ := r.Find(NameNode)
	assert.Equal(t, "20.11.1", c.Version)
	c, _ = r.Find(NamePuppeteer)
	assert.Equal(t, StatusPass, c.Status)
	assert.Equal(t, "0.7.2", c.Version)
	c, _ = r.Find(NameConfig)
	assert.Equal(t, ".claude-agent.yaml not found (optional)", c.Message)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write probe must clean up")
}

func TestCheck_Failures(t *testing.T) {
	h := healthyNodeHost()
	delete(h.installed, "claude")
	delete(h.installed, "npm")
	h.outputs["node --version"] = "v16.20.0"

	r := h.doctor().Check(context.Background(), filepath.Join(t.TempDir(), "missing"), "node")
	assert.False(t, r.Healthy())

	c, _ := r.Find(NameClaude)
	assert.Equal(t, StatusFail, c.Status)
	assert.Equal(t, "Install Claude Code CLI from https://claude.ai/code", c.FixCommand)

	c, _ = r.Find(NameNode)
	assert.Equal(t, StatusWarn, c.Status)
	assert.Equal(t, "Node.js version 16.20.0 is below recommended minimum (18.x)", c.Message)

	c, _ = r.Find(NamePuppeteer)
	assert.Equal(t, StatusSkip, c.Status)

	c, _ = r.Find(NameProject)
	assert.Equal(t, StatusFail, c.Status)
	assert.Contains(t, c.Message, "Directory does not exist")

	assert.Equal(t, 3, r.ErrorCount())
	assert.Equal(t, 1, r.WarningCount())
}

func TestCheck_ClaudeError(t *testing.T) {
	h := healthyNodeHost()
	h.failures["claude --version"] = "not logged in"
	r := h.doctor().Check(context.Background(), t.TempDir(), "node")
	c, _ := r.Find(NameClaude)
	assert.Equal(t, StatusFail, c.Status)
	assert.Equal(t, "Claude Code CLI error: not logged in", c.Message)
	assert.Equal(t, "Run 'claude login' to authenticate", c.FixCommand)
}

func TestCheck_PythonTools(t *testing.T) {
	h := &fakeHost{
		installed: map[string]bool{"claude": true, "git": true, "python3": true, "uv": true, "npm": true},
		outputs: map[string]string{
			"python3 --version": "Python 3.9.6",
			"uv --version":      "uv 0.4.1",
		},
		failures: map[string]string{"npm list -g puppeteer-mcp-server --depth=0": "empty"},
	}
	r := h.doctor().Check(context.Background(), t.TempDir(), "python")

	c, _ := r.Find(NamePython)
	assert.Equal(t, StatusWarn, c.Status)
	assert.Equal(t, "Python version 3.9.6 is below recommended minimum (3.10)", c.Message)
	c, ok := r.Find(NameUv)
	require.True(t, ok)
	assert.Equal(t, StatusPass, c.Status)
	_, ok = r.Find(NamePip)
	assert.False(t, ok)
	c, _ = r.Find(NamePuppeteer)
	assert.Equal(t, StatusFail, c.Status)
	assert.Equal(t, "npm install -g puppeteer-mcp-server", c.FixCommand)

	delete(h.installed, "uv")
	r = h.doctor().Check(context.Background(), t.TempDir(), "python")
	c, ok = r.Find(NamePipOrUv)
	require.True(t, ok)
	assert.Equal(t, "Neither pip3 nor uv installed", c.Message)
}

func TestCheck_Config(t *testing.T) {
	h := healthyNodeHost()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".claude-agent.yaml"), []byte("features: 10\nbogus: 1\n"), 0o644))
	c, _ := h.doctor().Check(context.Background(), dir, "node").Find(NameConfig)
	assert.Equal(t, StatusWarn, c.Status)
	assert.Equal(t, "Unknown configuration keys: bogus", c.Message)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".claude-agent.yaml"), []byte("features: [\n"), 0o644))
	c, _ = h.doctor().Check(context.Background(), dir, "node").Find(NameConfig)
	assert.Equal(t, StatusFail, c.Status)
	assert.True(t, strings.HasPrefix(c.Message, "YAML syntax error"), c.Message)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".claude-agent.yaml"), []byte("features: 10\n"), 0o644))
	c, _ = h.doctor().Check(context.Background(), dir, "node").Find(NameConfig)
	assert.Equal(t, StatusPass, c.Status)
	assert.Equal(t, ".claude-agent.yaml found and valid", c.Message)
}

func TestParseVersion(t *testing.T) {
	tests := map[string]string{
		"v20.1.0":            "20.1.0",
		"git version 2.39.0": "2.39.0",
		"Python 3.12.0":      "3.12.0",
		"uv 0.4":             "0.4",
		"no version here":    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseVersion(in), in)
	}
}

func TestFormatText(t *testing.T) {
	h := healthyNodeHost()
	delete(h.installed, "git")
	r := h.doctor().Check(context.Background(), t.TempDir(), "node")

	out := FormatText(r, false, false)
	assert.Contains(t, out, "Claude Agent Environment Check")
	assert.Contains(t, out, "Authentication:")
	assert.Contains(t, out, "[✓] Claude Code CLI installed (1.0.3)")
	assert.Contains(t, out, "[✗] Git not installed")
	assert.Contains(t, out, "      Run: Install Git: https://git-scm.com/downloads")
	assert.Contains(t, out, "Stack detected: node")
	assert.Contains(t, out, "Summary: 1 error(s), 0 warning(s)")
	assert.Contains(t, out, "doctor --fix")

	healthy := healthyNodeHost().doctor().Check(context.Background(), t.TempDir(), "node")
	assert.Contains(t, FormatText(healthy, false, false), "Summary: All checks passed!")
}

func TestFormatJSON(t *testing.T) {
	r := healthyNodeHost().doctor().Check(context.Background(), t.TempDir(), "node")
	data, err := FormatJSON(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, true, out["is_healthy"])
	assert.Equal(t, "node", out["stack"])
	summary := out["summary"].(map[string]any)
	assert.EqualValues(t, 7, summary["passed"])
	checks := out["checks"].([]any)
	first := checks[0].(map[string]any)
	assert.Equal(t, "Claude Code CLI", first["name"])
	assert.NotContains(t, first, "fix_command")
}

func TestFix(t *testing.T) {
	h := healthyNodeHost()
	delete(h.installed, "git")
	h.failures["npm list -g puppeteer-mcp-server --depth=0"] = "empty"
	projectDir := filepath.Join(t.TempDir(), "new")

	d := h.doctor()
	r := d.Check(context.Background(), projectDir, "node")
	results := d.Fix(context.Background(), r, func(string) bool { return true })

	byName := map[string]FixResult{}
	for _, res := range results {
		byName[res.Name] = res
	}
	assert.Equal(t, FixManual, byName[NameGit].Type)
	assert.Equal(t, FixFixed, byName[NameProject].Type)
	assert.DirExists(t, projectDir)
	assert.Equal(t, FixFixed, byName[NamePuppeteer].Type)
	assert.Contains(t, h.calls, "npm install -g puppeteer-mcp-server")

	declined := d.Fix(context.Background(), r, nil)
	for _, res := range declined {
		if res.Name == NamePuppeteer {
			assert.Equal(t, FixManual, res.Type)
			assert.Equal(t, "User declined installation", res.Message)
		}
	}

	out := FormatFixes(results, false)
	assert.Contains(t, out, "Fix Results:")
	assert.Contains(t, out, "[✓] Fixed: Created directory")
	assert.Equal(t, "No fixes attempted.", FormatFixes(nil, false))
}
