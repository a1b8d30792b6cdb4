package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/claude-agent/internal/logging"
)

// Status is the coarse outcome of a session.
type Status string

const (
	// StatusContinue means the session ran; the caller re-reads project
	// state to decide what comes next.
	StatusContinue Status = "continue"
	// StatusError means the session failed and nothing it reported
	// should be trusted.
	StatusError Status = "error"
)

// Request describes one session.
type Request struct {
	ProjectDir string
	Prompt     string
	Model      string
	MaxTurns   int
	// AgentType labels the session in logs (coding, initializer, ...).
	AgentType string
	// Validator installs the Stop hook that demands a verdict.
	Validator bool
	// Timeout of zero means none.
	Timeout time.Duration
	// Observer receives this session's events after the runner's own
	// observer.
	Observer Observer
}

// Result is the outcome of a session.
type Result struct {
	Status Status
	// Text is the concatenated assistant text, or the error message when
	// Status is StatusError.
	Text     string
	Turns    int
	Duration time.Duration
}

// Runner executes agent sessions.
type Runner interface {
	// Run executes req. Session failures are reported through
	// Result.Status; the error is reserved for cancellation and failures
	// to start.
	Run(ctx context.Context, req Request) (Result, error)
}

// SystemPrompt is appended to the claude CLI system prompt.
const SystemPrompt = "You are an expert full-stack developer building a production-quality application."

// DefaultMCPConfig registers the puppeteer MCP server.
const DefaultMCPConfig = `{"mcpServers":{"puppeteer":{"command":"npx","args":["puppeteer-mcp-server"]}}}`

// ClaudeRunner runs sessions through the claude CLI.
type ClaudeRunner struct {
	// Path is the claude executable.
	Path string
	// HookExecutable is the claude-agent binary installed as the hook
	// command. Empty disables hooks.
	HookExecutable string
	// Stack and ConfigPath are passed on to the hook command.
	Stack      string
	ConfigPath string
	// MCPConfig is passed as --mcp-config. Empty skips MCP servers.
	MCPConfig string
	Observer  Observer
	Logger    *logging.Logger
}

// NewClaudeRunner creates a runner for the claude binary at path.
func NewClaudeRunner(path, hookExecutable string, observer Observer, logger *logging.Logger) *ClaudeRunner {
	if path == "" {
		path = "claude"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ClaudeRunner{
		Path:           path,
		HookExecutable: hookExecutable,
		MCPConfig:      DefaultMCPConfig,
		Observer:       observer,
		Logger:         logger,
	}
}

// Args returns the claude CLI arguments for req.
func (r *ClaudeRunner) Args(req Request, settingsPath string) []string {
	args := []string{
		"-p",
		"--output-format", "stream-json",
		"--verbose",
		"--model", req.Model,
		"--max-turns", strconv.Itoa(req.MaxTurns),
		"--settings", settingsPath,
		"--append-system-prompt", SystemPrompt,
	}
	if r.MCPConfig != "" {
		args = append(args, "--mcp-config", r.MCPConfig)
	}
	return args
}

func (r *ClaudeRunner) hooks(req Request) Hooks {
	return Hooks{
		Executable: r.HookExecutable,
		Stack:      r.Stack,
		ConfigPath: r.ConfigPath,
		Validator:  req.Validator,
	}
}

// Run executes req and collects its output.
func (r *ClaudeRunner) Run(ctx context.Context, req Request) (Result, error) {
	settings, err := WriteSettings(req.ProjectDir, r.hooks(req))
	if err != nil {
		return Result{}, err
	}

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.Path, r.Args(req, settings)...)
	cmd.Dir = req.ProjectDir
	cmd.Stdin = strings.NewReader(req.Prompt)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}

	start := time.Now()
	r.Logger.Debug(ctx, "starting claude session",
		zap.String("agent_type", req.AgentType),
		zap.String("model", req.Model),
		zap.Int("max_turns", req.MaxTurns),
	)
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", r.Path, err)
	}

	var (
		text strings.Builder
		end  *SessionEnd
		obs  = Observers{r.Observer, req.Observer}
	)
	decodeErr := DecodeStream(stdout, func(ev Event) {
		switch e := ev.(type) {
		case TextChunk:
			text.WriteString(e.Text)
		case SessionEnd:
			end = &e
		}
		obs.Observe(ctx, ev)
	})
	if decodeErr != nil {
		// Drain so Wait does not block on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()

	res := Result{Text: text.String(), Duration: time.Since(start)}
	if end != nil {
		res.Turns = end.Turns
	}

	if ctx.Err() != nil {
		return Result{Status: StatusError, Text: ctx.Err().Error(), Duration: res.Duration}, ctx.Err()
	}

	var failure error
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		failure = fmt.Errorf("session timed out after %s", req.Timeout)
	case decodeErr != nil:
		failure = decodeErr
	case waitErr != nil:
		failure = fmt.Errorf("claude exited: %w%s", waitErr, stderrSuffix(stderr.String()))
	case end == nil:
		failure = errors.New("claude output ended without a result")
	case end.IsError:
		failure = fmt.Errorf("session ended with %s: %s", end.Subtype, end.Result)
	}
	if failure != nil {
		r.Logger.Warn(ctx, "claude session failed",
			zap.String("agent_type", req.AgentType),
			zap.Error(failure),
		)
		return Result{Status: StatusError, Text: failure.Error(), Turns: res.Turns, Duration: res.Duration}, nil
	}

	res.Status = StatusContinue
	return res, nil
}

func stderrSuffix(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return ": " + logging.Truncate(s, 500)
}
