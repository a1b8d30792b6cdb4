package main

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/claude-agent/internal/clierr"
	"github.com/fyrsmithlabs/claude-agent/internal/config"
	"github.com/fyrsmithlabs/claude-agent/internal/logging"
	"github.com/fyrsmithlabs/claude-agent/internal/metrics"
	"github.com/fyrsmithlabs/claude-agent/internal/monitor"
)

var (
	statusWatch    bool
	statusInterval time.Duration
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "show a live dashboard that refreshes as the project changes")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", 5*time.Second, "dashboard refresh interval")
}

// statusCmd shows project progress
var statusCmd = &cobra.Command{
	Use:   "status [project_dir]",
	Short: "Show project status and progress",
	Long: `Show the project's stack, session state, feature progress and the most
recent progress notes.

With --watch, a live dashboard redraws whenever feature_list.json, the
progress notes, validation history or drift metrics change.

Examples:
  # One-shot status
  claude-agent status ./my-project

  # Live dashboard
  claude-agent status ./my-project --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return clierr.MissingFile(dir, "claude-agent init "+clierr.QuotePath(dir), "status needs an existing project directory")
	}

	source := statusSource(dir)
	if !statusWatch {
		cmd.Print(monitor.FormatText(source.Collect(cmd.Context())))
		return nil
	}

	watcher, err := monitor.NewWatcher(dir, source.Metrics.Path())
	if err != nil {
		return err
	}
	if err := watcher.Start(cmd.Context()); err != nil {
		return err
	}
	defer watcher.Stop()

	model := monitor.NewModel(source, statusInterval, watcher.Changes())
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	_, err = p.Run()
	return err
}

// statusSource reads the project without writing to the agent log. A
// config file that fails to load falls back to the default metrics file.
func statusSource(dir string) monitor.Source {
	store := metrics.NewStore(dir, "", metrics.DefaultTuning(), logging.NewNop())
	logDir := logging.NewDefaultConfig(dir).Dir
	if cfg, err := config.Load(dir, config.Overrides{}); err == nil {
		store = metrics.NewStore(dir, cfg.Metrics.File, metrics.TuningFromConfig(cfg.Metrics), logging.NewNop())
	}
	return monitor.Source{Dir: dir, Metrics: store, LogDir: logDir}
}
