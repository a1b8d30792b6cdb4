// Package main implements the claude-agent CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/claude-agent/internal/clierr"
	"github.com/fyrsmithlabs/claude-agent/internal/config"
	"github.com/fyrsmithlabs/claude-agent/internal/detection"
)

var (
	// version information
	version = "dev"

	specFile         string
	goal             string
	features         int
	stackName        string
	model            string
	maxIterations    int
	configPath       string
	review           bool
	verbose          bool
	skipArchitecture bool
)

// exitError carries a process exit status without printing anything.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	// cmd.Print* writes to stderr unless an output is set.
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		clierr.Print(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "claude-agent [project_dir]",
	Short: "Autonomous coding agent powered by Claude",
	Long: `claude-agent runs long autonomous coding sessions with persistent progress
tracking across multiple context windows.

The first run turns a spec into feature_list.json. Later runs implement
features one session at a time until a validator session approves the
project.

Exit status:
  0  complete        1  error
  2  max iterations  3  max rejections
  4  needs manual verification
  5  aborted after spec review

Examples:
  # Start a project from a spec file
  claude-agent ./my-project --spec ./SPEC.md

  # Start from a short goal
  claude-agent ./my-project --goal "Build a REST API for todos"

  # Resume an existing project
  claude-agent ./my-project`,
	Version:       version,
	Args:          cobra.MaximumNArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runRoot,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&specFile, "spec", "s", "", "path to specification file")
	f.StringVarP(&goal, "goal", "g", "", "short goal description (alternative to --spec)")
	f.IntVarP(&features, "features", "f", 0, "number of features to generate (default 50)")
	f.StringVar(&stackName, "stack", "", fmt.Sprintf("tech stack %v (auto-detected if not specified)", detection.AvailableStacks()))
	f.StringVarP(&model, "model", "m", "", "Claude model to use")
	f.IntVarP(&maxIterations, "max-iterations", "n", 0, "maximum agent iterations (0 = unlimited)")
	f.StringVarP(&configPath, "config", "c", "", "path to config file")
	f.BoolVarP(&review, "review", "r", false, "review the spec before generating features")
	f.BoolVar(&skipArchitecture, "skip-architecture", false, "skip the architecture lock phase")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "mirror agent log events to stderr")
}

func runRoot(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	if specFile != "" {
		if _, err := os.Stat(specFile); err != nil {
			return clierr.MissingFile(specFile, "", "The --spec file must exist")
		}
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return clierr.MissingFile(configPath, "claude-agent init", "The --config file must exist")
		}
	}

	o := config.Overrides{
		ConfigPath:       configPath,
		SpecFile:         specFile,
		Goal:             goal,
		Stack:            stackName,
		Model:            model,
		Review:           review,
		SkipArchitecture: skipArchitecture,
	}
	if cmd.Flags().Changed("features") {
		o.Features = &features
	}
	if cmd.Flags().Changed("max-iterations") {
		o.MaxIterations = &maxIterations
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cmd, dir, o)
	if err != nil {
		return err
	}
	defer app.Close()

	orch := app.orchestrator(cmd, app.runner(cmd))
	outcome, err := orch.Run(ctx)
	if errors.Is(ctx.Err(), context.Canceled) {
		cmd.PrintErrln("\n\nInterrupted by user")
		cmd.PrintErrln("To resume, run the same command again")
	} else if err != nil {
		clierr.Print(cmd.ErrOrStderr(), err)
	}
	if code := outcome.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// projectDir resolves the optional project directory argument.
func projectDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve project dir: %w", err)
	}
	return abs, nil
}
