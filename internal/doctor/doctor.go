// Package doctor checks that the environment can run claude-agent.
package doctor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/claude-agent/internal/config"
	"github.com/fyrsmithlabs/claude-agent/internal/detection"
)

// Status is the outcome of one check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusWarn Status = "warn"
	StatusSkip Status = "skip"
)

// Category groups checks in the report.
type Category string

const (
	CategoryAuth    Category = "authentication"
	CategoryTools   Category = "tools"
	CategoryProject Category = "project"
)

// Check names used by fixes.
const (
	NameClaude    = "Claude Code CLI"
	NameGit       = "Git"
	NameNode      = "Node.js"
	NameNpm       = "npm"
	NamePython    = "Python"
	NamePip       = "pip"
	NameUv        = "uv"
	NamePipOrUv   = "pip/uv"
	NamePuppeteer = "puppeteer-mcp-server"
	NameProject   = "Project Directory"
	NameConfig    = "Configuration File"
)

// Recommended minimum versions. Older versions only warn.
const (
	MinNodeMajor   = 18
	MinNpmMajor    = 8
	MinPythonMajor = 3
	MinPythonMinor = 10
)

// DefaultTimeout bounds each probe command.
const DefaultTimeout = 3 * time.Second

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	Status     Status   `json:"status"`
	Message    string   `json:"message"`
	FixCommand string   `json:"fix_command,omitempty"`
	Version    string   `json:"version,omitempty"`
	Details    string   `json:"-"`
}

// Report collects every check in display order.
type Report struct {
	Checks     []CheckResult
	ProjectDir string
	Stack      string
}

func (r *Report) count(s Status) int {
	n := 0
	for _, c := range r.Checks {
		if c.Status == s {
			n++
		}
	}
	return n
}

// ErrorCount is the number of failed checks.
func (r *Report) ErrorCount() int { return r.count(StatusFail) }

// WarningCount is the number of warnings.
func (r *Report) WarningCount() int { return r.count(StatusWarn) }

// PassCount is the number of passed checks.
func (r *Report) PassCount() int { return r.count(StatusPass) }

// Healthy reports whether no check failed. Warnings are allowed.
func (r *Report) Healthy() bool { return r.ErrorCount() == 0 }

// Find returns the first check named name.
func (r *Report) Find(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// RunFunc executes a command and returns its output.
type RunFunc func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// Doctor runs the checks. The function fields exist so tests can fake the
// host.
type Doctor struct {
	LookPath func(string) (string, error)
	Run      RunFunc
	Timeout  time.Duration
	Verbose  bool
}

// New returns a doctor probing the real host.
func New(verbose bool) *Doctor {
	return &Doctor{
		LookPath: exec.LookPath,
		Run:      runCommand,
		Timeout:  DefaultTimeout,
		Verbose:  verbose,
	}
}

func runCommand(ctx context.Context, name string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() != nil {
		return stdout.String(), stderr.String(), ctx.Err()
	}
	return stdout.String(), stderr.String(), err
}

// probe runs a command under the doctor's timeout. A timeout is reported
// in stderr as "timed out".
func (d *Doctor) probe(ctx context.Context, timeout time.Duration, name string, args ...string) (string, string, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stdout, stderr, err := d.Run(ctx, name, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return stdout, fmt.Sprintf("Command timed out after %s", timeout), false
		}
		if stderr == "" {
			stderr = err.Error()
		}
		return stdout, stderr, false
	}
	return stdout, stderr, true
}

var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`v?(\d+\.\d+\.\d+)`),
	regexp.MustCompile(`v?(\d+\.\d+)`),
}

// ParseVersion extracts a dotted version from tool output such as
// "v20.1.0", "git version 2.39.0" or "Python 3.12.0".
func ParseVersion(output string) string {
	for _, p := range versionPatterns {
		if m := p.FindStringSubmatch(output); m != nil {
			return m[1]
		}
	}
	return ""
}

// versionParts returns the leading numeric components of v.
func versionParts(v string) []int {
	var parts []int
	for _, s := range strings.Split(v, ".") {
		n, err := strconv.Atoi(s)
		if err != nil {
			break
		}
		parts = append(parts, n)
	}
	return parts
}

func head(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}

// details joins verbose detail lines, or returns "" when not verbose.
func (d *Doctor) details(lines ...string) string {
	if !d.Verbose {
		return ""
	}
	return strings.Join(lines, "\n")
}

// Check runs every check for projectDir. An empty stack is detected.
// Independent checks run concurrently; the report keeps a fixed order.
func (d *Doctor) Check(ctx context.Context, projectDir, stack string) *Report {
	if stack == "" {
		stack = detection.DetectStack(projectDir)
	}

	var (
		claude, git, project CheckResult
		tools, configChecks  []CheckResult
		puppeteer            CheckResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		claude = d.checkClaude(gctx)
		return nil
	})
	g.Go(func() error {
		git = d.checkGit(gctx)
		return nil
	})
	g.Go(func() error {
		tools = d.checkStackTools(gctx, stack)
		npmOK := true
		if stack == "node" {
			npm, ok := findIn(tools, NameNpm)
			npmOK = ok && npm.Status == StatusPass
		}
		puppeteer = d.checkPuppeteer(gctx, npmOK)
		return nil
	})
	g.Go(func() error {
		project = d.checkProjectDir(projectDir)
		return nil
	})
	g.Go(func() error {
		configChecks = d.checkConfig(projectDir)
		return nil
	})
	_ = g.Wait()

	checks := []CheckResult{claude, git}
	checks = append(checks, tools...)
	checks = append(checks, puppeteer, project)
	checks = append(checks, configChecks...)
	return &Report{Checks: checks, ProjectDir: projectDir, Stack: stack}
}

func findIn(checks []CheckResult, name string) (CheckResult, bool) {
	r := Report{Checks: checks}
	return r.Find(name)
}

func (d *Doctor) checkClaude(ctx context.Context) CheckResult {
	res := CheckResult{Name: NameClaude, Category: CategoryAuth}
	path, err := d.LookPath("claude")
	if err != nil {
		res.Status = StatusFail
		res.Message = "Claude Code CLI not installed"
		res.FixCommand = "Install Claude Code CLI from https://claude.ai/code"
		res.Details = d.details("PATH: " + os.Getenv("PATH"))
		return res
	}

	stdout, stderr, ok := d.probe(ctx, d.Timeout, "claude", "--version")
	if !ok {
		res.Status = StatusFail
		res.FixCommand = "Run 'claude login' to authenticate"
		if strings.Contains(stderr, "timed out") {
			res.Message = "Claude Code CLI not responding (timeout)"
		} else {
			res.Message = "Claude Code CLI error: " + head(stderr, 100)
		}
		res.Details = d.details(stderr)
		return res
	}
	res.Status = StatusPass
	res.Message = "Claude Code CLI installed"
	res.Version = ParseVersion(stdout)
	res.Details = d.details("Running: claude --version", "Path: "+path, "Output: "+strings.TrimSpace(stdout))
	return res
}

func (d *Doctor) checkGit(ctx context.Context) CheckResult {
	res := CheckResult{Name: NameGit, Category: CategoryTools}
	path, err := d.LookPath("git")
	if err != nil {
		res.Status = StatusFail
		res.Message = "Git not installed"
		res.FixCommand = "Install Git: https://git-scm.com/downloads"
		res.Details = d.details("PATH: " + os.Getenv("PATH"))
		return res
	}
	stdout, stderr, ok := d.probe(ctx, d.Timeout, "git", "--version")
	if !ok {
		res.Status = StatusFail
		res.Message = "Git error: " + head(stderr, 100)
		res.FixCommand = "Reinstall Git: https://git-scm.com/downloads"
		res.Details = d.details(stderr)
		return res
	}
	res.Status = StatusPass
	res.Message = "Git available"
	res.Version = ParseVersion(stdout)
	res.Details = d.details("Running: git --version", "Path: "+path, "Output: "+strings.TrimSpace(stdout))
	return res
}

// toolSpec describes a versioned tool probe.
type toolSpec struct {
	name, binary, display string
	installFix, errorFix  string

	// missing overrides the "<display> not installed" message.
	missing string

	// belowMin reports whether parsed version parts are below the
	// recommended minimum, and the minimum's label.
	belowMin func([]int) (bool, string)
}

func (d *Doctor) checkTool(ctx context.Context, t toolSpec) CheckResult {
	res := CheckResult{Name: t.name, Category: CategoryTools}
	path, err := d.LookPath(t.binary)
	if err != nil {
		res.Status = StatusFail
		res.Message = t.display + " not installed"
		if t.missing != "" {
			res.Message = t.missing
		}
		res.FixCommand = t.installFix
		return res
	}
	stdout, stderr, ok := d.probe(ctx, d.Timeout, t.binary, "--version")
	if !ok {
		res.Status = StatusFail
		res.Message = t.display + " error: " + head(stderr, 100)
		res.FixCommand = t.errorFix
		res.Details = d.details(stderr)
		return res
	}
	res.Version = ParseVersion(stdout)
	res.Details = d.details("Running: "+t.binary+" --version", "Path: "+path, "Output: "+strings.TrimSpace(stdout))
	if t.belowMin != nil {
		if below, min := t.belowMin(versionParts(res.Version)); below {
			res.Status = StatusWarn
			res.Message = fmt.Sprintf("%s version %s is below recommended minimum (%s)", t.display, res.Version, min)
			return res
		}
	}
	res.Status = StatusPass
	res.Message = t.display + " available"
	return res
}

func majorBelow(min int) func([]int) (bool, string) {
	return func(p []int) (bool, string) {
		return len(p) > 0 && p[0] < min, fmt.Sprintf("%d.x", min)
	}
}

func (d *Doctor) checkStackTools(ctx context.Context, stack string) []CheckResult {
	switch stack {
	case "node":
		return []CheckResult{
			d.checkTool(ctx, toolSpec{
				name: NameNode, binary: "node", display: "Node.js",
				installFix: "Install Node.js: https://nodejs.org/",
				errorFix:   "Reinstall Node.js: https://nodejs.org/",
				belowMin:   majorBelow(MinNodeMajor),
			}),
			d.checkTool(ctx, toolSpec{
				name: NameNpm, binary: "npm", display: "npm",
				installFix: "Install Node.js (includes npm): https://nodejs.org/",
				errorFix:   "Reinstall Node.js (includes npm): https://nodejs.org/",
				belowMin:   majorBelow(MinNpmMajor),
			}),
		}
	case "python":
		return d.checkPythonTools(ctx)
	}
	return nil
}

func (d *Doctor) checkPythonTools(ctx context.Context) []CheckResult {
	results := []CheckResult{d.checkTool(ctx, toolSpec{
		name: NamePython, binary: "python3", display: "Python", missing: "Python 3 not installed",
		installFix: "Install Python: https://www.python.org/downloads/",
		errorFix:   "Reinstall Python: https://www.python.org/downloads/",
		belowMin: func(p []int) (bool, string) {
			min := fmt.Sprintf("%d.%d", MinPythonMajor, MinPythonMinor)
			if len(p) < 2 {
				return false, min
			}
			return p[0] < MinPythonMajor || (p[0] == MinPythonMajor && p[1] < MinPythonMinor), min
		},
	})}

	_, uvErr := d.LookPath("uv")
	_, pipErr := d.LookPath("pip3")
	if uvErr != nil && pipErr != nil {
		return append(results, CheckResult{
			Name:       NamePipOrUv,
			Category:   CategoryTools,
			Status:     StatusFail,
			Message:    "Neither pip3 nor uv installed",
			FixCommand: "Install pip or uv: pip comes with Python, or install uv from https://github.com/astral-sh/uv",
		})
	}
	if uvErr == nil {
		results = append(results, d.checkTool(ctx, toolSpec{
			name: NameUv, binary: "uv", display: "uv",
			errorFix: "Reinstall uv: https://github.com/astral-sh/uv",
		}))
	}
	if pipErr == nil {
		results = append(results, d.checkTool(ctx, toolSpec{
			name: NamePip, binary: "pip3", display: "pip",
			errorFix: "Reinstall Python (includes pip): https://www.python.org/downloads/",
		}))
	}
	return results
}

func (d *Doctor) checkPuppeteer(ctx context.Context, npmAvailable bool) CheckResult {
	res := CheckResult{Name: NamePuppeteer, Category: CategoryTools}
	if !npmAvailable {
		res.Status = StatusSkip
		res.Message = "Skipped (requires npm)"
		res.Details = d.details("npm check failed, puppeteer-mcp-server check skipped")
		return res
	}
	// npm list is slow on large global installs.
	stdout, _, ok := d.probe(ctx, 5*time.Second, "npm", "list", "-g", "puppeteer-mcp-server", "--depth=0")
	if ok && strings.Contains(stdout, "puppeteer-mcp-server") {
		res.Status = StatusPass
		res.Message = "puppeteer-mcp-server available"
		res.Version = ParseVersion(stdout[strings.Index(stdout, "puppeteer-mcp-server"):])
		res.Details = d.details("Running: npm list -g puppeteer-mcp-server", "Output: "+strings.TrimSpace(stdout))
		return res
	}
	res.Status = StatusFail
	res.Message = "puppeteer-mcp-server not found"
	res.FixCommand = "npm install -g puppeteer-mcp-server"
	res.Details = d.details("Running: npm list -g puppeteer-mcp-server", "Result: Not found in global packages")
	return res
}

func (d *Doctor) checkProjectDir(dir string) CheckResult {
	res := CheckResult{Name: NameProject, Category: CategoryProject}
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		res.Status = StatusFail
		res.Message = "Directory does not exist: " + dir
		res.FixCommand = "mkdir -p " + dir
		return res
	case err != nil:
		res.Status = StatusFail
		res.Message = "Cannot access directory: " + head(err.Error(), 100)
		return res
	case !info.IsDir():
		res.Status = StatusFail
		res.Message = "Path exists but is not a directory: " + dir
		return res
	}

	f, err := os.CreateTemp(dir, ".claude-agent-doctor-*")
	if err != nil {
		res.Status = StatusFail
		if errors.Is(err, os.ErrPermission) {
			res.Message = "Permission denied: cannot write to " + dir
			res.FixCommand = "Check directory permissions: ls -la " + dir
		} else {
			res.Message = "Cannot access directory: " + head(err.Error(), 100)
		}
		return res
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	res.Status = StatusPass
	res.Message = "Directory exists and writable"
	res.Details = d.details("Checking: "+dir, "Write test: Created temp file "+filepath.Base(name))
	return res
}

func (d *Doctor) checkConfig(dir string) []CheckResult {
	res := CheckResult{Name: NameConfig, Category: CategoryProject}
	path := config.FindFile(dir)
	if path == "" {
		res.Status = StatusPass
		res.Message = ".claude-agent.yaml not found (optional)"
		res.FixCommand = "claude-agent init"
		return []CheckResult{res}
	}

	keys, err := config.LoadFileKeys(path)
	if err != nil {
		res.Status = StatusFail
		res.FixCommand = "Check YAML syntax and fix errors"
		var pe *config.ParseError
		if errors.As(err, &pe) {
			loc := ""
			if pe.Line > 0 {
				loc = fmt.Sprintf(" at line %d", pe.Line)
			}
			res.Message = fmt.Sprintf("YAML syntax error%s: %v", loc, pe.Err)
		} else {
			res.Message = "Cannot read config: " + err.Error()
		}
		return []CheckResult{res}
	}

	if unknown := config.UnknownKeys(keys); len(unknown) > 0 {
		res.Status = StatusWarn
		res.Message = "Unknown configuration keys: " + strings.Join(unknown, ", ")
		return []CheckResult{res}
	}
	res.Status = StatusPass
	res.Message = filepath.Base(path) + " found and valid"
	res.Details = d.details(fmt.Sprintf("Parsed successfully with %d keys", len(keys)))
	return []CheckResult{res}
}
