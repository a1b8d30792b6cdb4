package session

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClaude writes an executable script that swallows stdin and prints
// body.
func fakeClaude(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	path := filepath.Join(t.TempDir(), "claude")
	script := "#!/bin/sh\ncat > \"$(dirname \"$0\")/prompt.txt\"\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestClaudeRunner_Run(t *testing.T) {
	bin := fakeClaude(t, "cat <<'EOF'\n"+transcript+"EOF")
	dir := t.TempDir()

	var seen []Event
	r := NewClaudeRunner(bin, "", ObserverFunc(func(_ context.Context, ev Event) {
		seen = append(seen, ev)
	}), nil)

	res, err := r.Run(context.Background(), Request{
		ProjectDir: dir,
		Prompt:     "build it",
		Model:      "m",
		MaxTurns:   10,
		AgentType:  "coding",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusContinue, res.Status)
	assert.Equal(t, "Looking at the project. Done.", res.Text)
	assert.Equal(t, 4, res.Turns)
	assert.Len(t, seen, 6)

	prompt, err := os.ReadFile(filepath.Join(filepath.Dir(bin), "prompt.txt"))
	require.NoError(t, err)
	assert.Equal(t, "build it", string(prompt))
	assert.FileExists(t, filepath.Join(dir, SettingsFileName))
}

func TestClaudeRunner_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"non-zero exit", "echo boom >&2; exit 3", "boom"},
		{"no result line", `echo '{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}'`, "without a result"},
		{"error result", `echo '{"type":"result","subtype":"error_max_turns","is_error":true,"num_turns":10,"result":""}'`, "error_max_turns"},
		{"garbage", "echo garbage", "decode stream line"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewClaudeRunner(fakeClaude(t, tt.body), "", nil, nil)
			res, err := r.Run(context.Background(), Request{ProjectDir: t.TempDir(), Model: "m", MaxTurns: 1})
			require.NoError(t, err)
			assert.Equal(t, StatusError, res.Status)
			assert.Contains(t, res.Text, tt.want)
		})
	}
}

func TestClaudeRunner_Timeout(t *testing.T) {
	r := NewClaudeRunner(fakeClaude(t, "exec sleep 5"), "", nil, nil)
	res, err := r.Run(context.Background(), Request{
		ProjectDir: t.TempDir(), Model: "m", MaxTurns: 1, Timeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Text, "timed out")
}

func TestClaudeRunner_Cancelled(t *testing.T) {
	r := NewClaudeRunner(fakeClaude(t, "exec sleep 5"), "", nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	res, err := r.Run(ctx, Request{ProjectDir: t.TempDir(), Model: "m", MaxTurns: 1})
	require.Error(t, err)
	assert.Equal(t, StatusError, res.Status)
}

func TestClaudeRunner_MissingBinary(t *testing.T) {
	r := NewClaudeRunner(filepath.Join(t.TempDir(), "nope"), "", nil, nil)
	_, err := r.Run(context.Background(), Request{ProjectDir: t.TempDir(), Model: "m", MaxTurns: 1})
	require.Error(t, err)
}

func TestClaudeRunner_Args(t *testing.T) {
	r := NewClaudeRunner("", "", nil, nil)
	assert.Equal(t, "claude", r.Path)
	args := r.Args(Request{Model: "opus", MaxTurns: 75}, "/p/.claude_settings.json")
	assert.Equal(t, []string{
		"-p", "--output-format", "stream-json", "--verbose",
		"--model", "opus", "--max-turns", "75",
		"--settings", "/p/.claude_settings.json",
		"--append-system-prompt", SystemPrompt,
		"--mcp-config", DefaultMCPConfig,
	}, args)
}
