package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/claude-agent/internal/config"
	"github.com/fyrsmithlabs/claude-agent/internal/hooks"
	"github.com/fyrsmithlabs/claude-agent/internal/logging"
	"github.com/fyrsmithlabs/claude-agent/internal/security"
)

var (
	hookStack  string
	hookConfig string
)

func init() {
	rootCmd.AddCommand(hookCmd)
	hookCmd.AddCommand(hookPreToolUseCmd, hookStopCmd)

	hookCmd.PersistentFlags().StringVar(&hookConfig, "config", "", "config file of the run that installed the hook")
	hookPreToolUseCmd.Flags().StringVar(&hookStack, "stack", "", "stack whose allowlist applies (detected when empty)")
}

var hookCmd = &cobra.Command{
	Use:    "hook",
	Short:  "Claude Code hook handlers (invoked by agent sessions)",
	Hidden: true,
	Long: `Hook handlers installed into each session's .claude_settings.json.
They read the hook payload from stdin and write {} or
{"decision":"block","reason":"..."} to stdout.`,
}

var hookPreToolUseCmd = &cobra.Command{
	Use:   "pre-tool-use",
	Short: "Validate a Bash command against the stack allowlist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHook(cmd, hooks.EventPreToolUse, false)
	},
}

var hookStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Require a structured verdict before a validator session ends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHook(cmd, hooks.EventStop, true)
	},
}

func runHook(cmd *cobra.Command, event hooks.Event, validator bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	in, err := hooks.ReadInput(cmd.InOrStdin())
	if err != nil {
		if event == hooks.EventPreToolUse {
			return hooks.WriteOutput(out, hooks.Block("Could not read hook input: "+err.Error()))
		}
		return hooks.WriteOutput(out, hooks.Output{})
	}

	dir := in.Cwd
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			dir = "."
		}
	}
	o := config.Overrides{ConfigPath: hookConfig}
	if event == hooks.EventPreToolUse {
		o.Stack = hookStack
	}
	hc, err := hooks.LoadConfig(dir, o)
	if err != nil {
		hc = hooks.DefaultConfig(dir)
		if o.Stack != "" {
			hc.Stack = o.Stack
		}
	}

	logger, events := hookLogger(dir, hookConfig)
	defer func() { _ = logger.Close() }()

	var sink security.EventSink
	if events != nil {
		sink = events
	}
	result, err := hooks.NewDefaultManager(hc, sink, validator).Execute(ctx, event, in)
	if err != nil {
		logger.Error(ctx, "hook failed", zap.String("event", string(event)), zap.Error(err))
		return err
	}
	return hooks.WriteOutput(out, result)
}

// hookLogger opens the project's agent log so security decisions land
// next to the session that triggered them. The event logger is nil when
// logging is off.
func hookLogger(dir, configPath string) (*logging.Logger, *logging.EventLogger) {
	cfg, err := config.Load(dir, config.Overrides{ConfigPath: configPath})
	if err != nil || !cfg.Logging.Enabled {
		return logging.NewNop(), nil
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return logging.NewNop(), nil
	}
	return logger, logging.NewEventLogger(logger, nil)
}
