package detection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDetectStack(t *testing.T) {
	tests := []struct {
		name    string
		markers []string
		want    string
	}{
		{"empty dir defaults to node", nil, "node"},
		{"package.json", []string{"package.json"}, "node"},
		{"pnpm lock", []string{"pnpm-lock.yaml"}, "node"},
		{"requirements", []string{"requirements.txt"}, "python"},
		{"uv lock", []string{"uv.lock"}, "python"},
		{"node wins when both present", []string{"pyproject.toml", "package.json"}, "node"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, m := range tt.markers {
				touch(t, dir, m, "")
			}
			assert.Equal(t, tt.want, DetectStack(dir))
		})
	}
}

func TestDetectStack_MissingDir(t *testing.T) {
	assert.Equal(t, "node", DetectStack(filepath.Join(t.TempDir(), "nope")))
}

func TestCommands(t *testing.T) {
	node := Commands("node")
	assert.Contains(t, node, "npm")
	assert.Contains(t, node, "git")
	assert.Contains(t, node, "setup.sh")
	assert.Contains(t, node, "init.sh")
	assert.NotContains(t, node, "pytest")
	assert.IsIncreasing(t, node)

	py := Commands("python")
	assert.Contains(t, py, "pytest")
	assert.NotContains(t, py, "npm")

	assert.Equal(t, node, Commands("cobol"), "unknown stacks fall back to node")
}

func TestStackDefaults(t *testing.T) {
	assert.Equal(t, []string{"node", "python"}, AvailableStacks())
	assert.Equal(t, "npm install", InitCommand("node"))
	assert.Equal(t, "python main.py", DevCommand("python"))
	assert.ElementsMatch(t, []string{"python", "python3", "uvicorn", "gunicorn", "flask"}, PkillTargets("python"))
	assert.Len(t, BaseCommands(), 17)
}

func TestProjectCommands(t *testing.T) {
	t.Run("node is untouched", func(t *testing.T) {
		i, d := ProjectCommands(t.TempDir(), "node")
		assert.Equal(t, "npm install", i)
		assert.Equal(t, "npm run dev", d)
	})

	t.Run("poetry project with scripts", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "pyproject.toml", `
[project]
name = "todo"

[project.scripts]
serve = "todo.app:main"
migrate = "todo.db:migrate"

[tool.poetry]
name = "todo"
`)
		i, d := ProjectCommands(dir, "python")
		assert.Equal(t, "poetry install", i)
		assert.Equal(t, "migrate", d)
	})

	t.Run("uv lock", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "uv.lock", "")
		i, _ := ProjectCommands(dir, "python")
		assert.Equal(t, "uv sync", i)
	})

	t.Run("invalid toml keeps defaults", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "pyproject.toml", "[project\nname=")
		touch(t, dir, "requirements.txt", "")
		i, d := ProjectCommands(dir, "python")
		assert.Equal(t, "pip install -r requirements.txt", i)
		assert.Equal(t, "python main.py", d)
	})
}
