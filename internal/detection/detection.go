// Package detection identifies a project's tech stack from marker files
// and exposes the per-stack command sets used by the security validator.
package detection

import (
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/BurntSushi/toml"
)

// DefaultStack is used for new projects and unknown stack names.
const DefaultStack = "node"

// Stack describes one supported tech stack.
type Stack struct {
	Name         string
	Markers      []string
	Commands     []string
	PkillTargets []string
	InitCommand  string
	DevCommand   string
}

// stacks is ordered: detection returns the first stack with a marker present.
var stacks = []Stack{
	{
		Name:         "node",
		Markers:      []string{"package.json", "tsconfig.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml"},
		Commands:     []string{"npm", "npx", "node", "yarn", "pnpm"},
		PkillTargets: []string{"node", "npm", "npx", "vite", "next", "webpack"},
		InitCommand:  "npm install",
		DevCommand:   "npm run dev",
	},
	{
		Name:         "python",
		Markers:      []string{"pyproject.toml", "setup.py", "requirements.txt", "Pipfile", "poetry.lock", "uv.lock"},
		Commands:     []string{"python", "python3", "pip", "pip3", "uv", "poetry", "pytest", "ruff"},
		PkillTargets: []string{"python", "python3", "uvicorn", "gunicorn", "flask"},
		InitCommand:  "pip install -r requirements.txt",
		DevCommand:   "python main.py",
	},
}

// baseCommands are allowed on every stack.
var baseCommands = []string{
	"ls", "cat", "head", "tail", "wc", "grep", "cp", "mkdir", "chmod",
	"pwd", "git", "ps", "lsof", "sleep", "pkill", "init.sh", "setup.sh",
}

// AvailableStacks returns the supported stack names in detection order.
func AvailableStacks() []string {
	names := make([]string, 0, len(stacks))
	for _, s := range stacks {
		names = append(names, s.Name)
	}
	return names
}

// Lookup returns the named stack, falling back to DefaultStack.
func Lookup(name string) Stack {
	for _, s := range stacks {
		if s.Name == name {
			return s
		}
	}
	return stacks[0]
}

// DetectStack returns the first stack whose marker exists in dir.
// Missing directories and unmarked projects default to node.
func DetectStack(dir string) string {
	if _, err := os.Stat(dir); err != nil {
		return DefaultStack
	}
	for _, s := range stacks {
		for _, marker := range s.Markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return s.Name
			}
		}
	}
	return DefaultStack
}

// BaseCommands returns the utilities allowed regardless of stack.
func BaseCommands() []string {
	return slices.Clone(baseCommands)
}

// Commands returns the allowed command names for stack, base commands
// included, sorted.
func Commands(stack string) []string {
	set := map[string]struct{}{}
	for _, c := range baseCommands {
		set[c] = struct{}{}
	}
	for _, c := range Lookup(stack).Commands {
		set[c] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// PkillTargets returns the dev process names pkill may target.
func PkillTargets(stack string) []string {
	return slices.Clone(Lookup(stack).PkillTargets)
}

// InitCommand returns the stack's default install command.
func InitCommand(stack string) string {
	return Lookup(stack).InitCommand
}

// DevCommand returns the stack's default dev server command.
func DevCommand(stack string) string {
	return Lookup(stack).DevCommand
}

// pyproject holds the parts of pyproject.toml that affect commands.
type pyproject struct {
	Project struct {
		Name    string            `toml:"name"`
		Scripts map[string]string `toml:"scripts"`
	} `toml:"project"`
	Tool struct {
		Poetry *struct {
			Name string `toml:"name"`
		} `toml:"poetry"`
		UV *map[string]any `toml:"uv"`
	} `toml:"tool"`
}

// ProjectCommands returns the init and dev commands for a project,
// refined from pyproject.toml and lock files when the stack is python.
// Anything unreadable falls back to the stack defaults.
func ProjectCommands(dir, stack string) (initCmd, devCmd string) {
	s := Lookup(stack)
	initCmd, devCmd = s.InitCommand, s.DevCommand
	if s.Name != "python" {
		return initCmd, devCmd
	}

	var pp pyproject
	hasPyproject := false
	if _, err := toml.DecodeFile(filepath.Join(dir, "pyproject.toml"), &pp); err == nil {
		hasPyproject = true
	}

	switch {
	case exists(dir, "uv.lock") || (hasPyproject && pp.Tool.UV != nil):
		initCmd = "uv sync"
	case exists(dir, "poetry.lock") || (hasPyproject && pp.Tool.Poetry != nil):
		initCmd = "poetry install"
	case hasPyproject && !exists(dir, "requirements.txt"):
		initCmd = "pip install -e ."
	}

	if hasPyproject && len(pp.Project.Scripts) > 0 {
		names := make([]string, 0, len(pp.Project.Scripts))
		for name := range pp.Project.Scripts {
			names = append(names, name)
		}
		sort.Strings(names)
		devCmd = names[0]
	}
	return initCmd, devCmd
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
