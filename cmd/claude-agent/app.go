package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/claude-agent/internal/clierr"
	"github.com/fyrsmithlabs/claude-agent/internal/config"
	"github.com/fyrsmithlabs/claude-agent/internal/detection"
	"github.com/fyrsmithlabs/claude-agent/internal/logging"
	"github.com/fyrsmithlabs/claude-agent/internal/metrics"
	"github.com/fyrsmithlabs/claude-agent/internal/orchestrator"
	"github.com/fyrsmithlabs/claude-agent/internal/session"
	"github.com/fyrsmithlabs/claude-agent/internal/telemetry"
)

// app holds what every project command needs: merged config, the agent
// log, telemetry and the drift metrics store.
type app struct {
	dir        string
	configPath string
	cfg        *config.Config
	stack      string
	logger     *logging.Logger
	events     *logging.EventLogger
	store      *metrics.Store
	tel        *telemetry.Telemetry
}

func newApp(cmd *cobra.Command, dir string, o config.Overrides) (*app, error) {
	cfg, err := config.Load(dir, o)
	if err != nil {
		return nil, configError(err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	stack := cfg.Stack
	if stack == "" {
		stack = detection.DetectStack(dir)
	}
	logger.Debug(cmd.Context(), "configuration loaded",
		zap.String("project_dir", dir),
		zap.String("stack", stack),
		zap.String("model", cfg.Agent.Model),
	)

	tel, err := telemetry.New(cmd.Context(), telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		_ = logger.Close()
		return nil, clierr.New(err.Error(),
			"The telemetry section of the config file is invalid", "", "claude-agent doctor")
	}
	if h := tel.Health(); h.Degraded {
		logger.Warn(cmd.Context(), "telemetry degraded", zap.String("reason", h.Reason))
	}
	configPath := o.ConfigPath
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			configPath = abs
		}
	}
	return &app{
		dir:        dir,
		configPath: configPath,
		cfg:        cfg,
		stack:      stack,
		logger:     logger,
		events:     logging.NewEventLogger(logger, nil),
		store:      metrics.NewStore(dir, cfg.Metrics.File, metrics.TuningFromConfig(cfg.Metrics), logger),
		tel:        tel,
	}, nil
}

// Close flushes telemetry and the agent log.
func (a *app) Close() {
	if err := a.tel.Shutdown(context.Background()); err != nil {
		a.logger.Warn(context.Background(), "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Close()
}

// newRunner builds the session runner. Tests replace it.
var newRunner = func(a *app, out io.Writer) session.Runner {
	exe, err := os.Executable()
	if err != nil {
		a.logger.Warn(context.Background(), "cannot locate claude-agent binary, security hooks disabled", zap.Error(err))
		exe = ""
	}
	r := session.NewClaudeRunner(a.cfg.Agent.ClaudePath, exe, session.NewConsole(out), a.logger)
	r.Stack = a.stack
	r.ConfigPath = a.configPath
	return r
}

func (a *app) runner(cmd *cobra.Command) session.Runner {
	return newRunner(a, cmd.OutOrStdout())
}

func (a *app) orchestrator(cmd *cobra.Command, runner session.Runner) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.OptionsFromConfig(a.cfg, a.stack), orchestrator.Deps{
		Runner:    runner,
		Logger:    a.logger,
		Events:    a.events,
		Metrics:   a.store,
		Out:       cmd.OutOrStdout(),
		Confirm:   confirmer(cmd.InOrStdin(), cmd.OutOrStdout()),
		Telemetry: a.tel,
	})
}

// newLogger maps the config file's logging section onto the agent log.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig(cfg.ProjectDir)
	lc.Enabled = cfg.Logging.Enabled
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	lc.Level = level
	lc.IncludeToolResults = cfg.Logging.IncludeToolResults
	lc.IncludeAllowedCommands = cfg.Logging.IncludeAllowedCommands
	if cfg.Logging.MaxSizeMB > 0 {
		lc.MaxSizeMB = cfg.Logging.MaxSizeMB
	}
	if cfg.Logging.MaxFiles > 0 {
		lc.MaxFiles = cfg.Logging.MaxFiles
	}
	if verbose {
		lc.Console = true
		lc.Level = zapcore.DebugLevel
	}
	lc.OTEL = true
	return logging.NewLogger(lc, global.GetLoggerProvider())
}

// configError turns config load failures into actionable errors.
func configError(err error) error {
	if config.IsParseError(err) {
		return clierr.New(err.Error(),
			"The config file is not valid YAML",
			"claude-agent init  # writes a fresh template",
			"claude-agent doctor")
	}
	return clierr.New(err.Error(), "", "", "claude-agent doctor")
}

// confirmer asks yes/no questions on out and reads answers from in. An
// empty answer or end of input selects the default.
func confirmer(in io.Reader, out io.Writer) func(string, bool) bool {
	reader := bufio.NewReader(in)
	return func(question string, defaultYes bool) bool {
		hint := "[y/N]"
		if defaultYes {
			hint = "[Y/n]"
		}
		fmt.Fprintf(out, "%s %s: ", question, hint)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return defaultYes
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		default:
			return defaultYes
		}
	}
}
