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
	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
	"github.com/fyrsmithlabs/claude-agent/internal/orchestrator"
)

var (
	specProjectDir string
	specGoal       string
	specContext    string
	specFeatures   int
)

func init() {
	rootCmd.AddCommand(specCmd)
	specCmd.AddCommand(specCreateCmd, specValidateCmd, specDecomposeCmd, specAutoCmd, specStatusCmd)

	specCmd.PersistentFlags().StringVarP(&specProjectDir, "project-dir", "p", ".", "project directory")

	specCreateCmd.Flags().StringVarP(&specGoal, "goal", "g", "", "what the application should do (required)")
	specCreateCmd.Flags().StringVar(&specContext, "context", "", "extra context for the spec author")

	specDecomposeCmd.Flags().IntVarP(&specFeatures, "features", "f", 0, "number of features to generate (default from config)")

	specAutoCmd.Flags().StringVarP(&specGoal, "goal", "g", "", "what the application should do (required)")
	specAutoCmd.Flags().StringVar(&specContext, "context", "", "extra context for the spec author")
}

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Create, validate and decompose specs",
	Long: `Turn a goal into a reviewed spec and a feature list in separate steps.

Workflow:
  create     goal -> specs/spec-draft.md
  validate   spec -> specs/spec-validation.md (+ specs/spec-validated.md on pass)
  decompose  validated spec -> feature_list.json
  auto       all three in order, stopping at the first failure

Examples:
  claude-agent spec create -p ./my-project --goal "A CLI todo manager"
  claude-agent spec validate -p ./my-project
  claude-agent spec decompose -p ./my-project --features 30
  claude-agent spec auto -p ./my-project --goal "A CLI todo manager"
  claude-agent spec status -p ./my-project`,
}

var specCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a spec draft from a goal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if specGoal == "" {
			return clierr.MissingOption("--goal",
				`claude-agent spec create --goal "A CLI todo manager"`,
				"spec create needs a goal to write the spec from", "")
		}
		return runSpecStep(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) (orchestrator.SpecResult, error) {
			return o.RunSpecCreate(ctx, specGoal, specContext)
		}, "claude-agent spec validate")
	},
}

var specValidateCmd = &cobra.Command{
	Use:   "validate [spec_file]",
	Short: "Validate a spec (defaults to the draft)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return runSpecStep(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) (orchestrator.SpecResult, error) {
			return o.RunSpecValidate(ctx, path)
		}, "claude-agent spec decompose")
	},
}

var specDecomposeCmd = &cobra.Command{
	Use:   "decompose [spec_file]",
	Short: "Decompose a spec into feature_list.json (defaults to the validated spec)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return runSpecStep(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) (orchestrator.SpecResult, error) {
			return o.RunSpecDecompose(ctx, path, specFeatures)
		}, "claude-agent")
	},
}

var specAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run create, validate and decompose in order",
	Args:  cobra.NoArgs,
	RunE:  runSpecAuto,
}

var specStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the spec workflow phase",
	Args:  cobra.NoArgs,
	RunE:  runSpecStatus,
}

// specApp loads the project for a spec subcommand and builds an
// orchestrator on it.
func specApp(cmd *cobra.Command) (*app, *orchestrator.Orchestrator, error) {
	dir, err := filepath.Abs(specProjectDir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve project dir: %w", err)
	}
	a, err := newApp(cmd, dir, config.Overrides{})
	if err != nil {
		return nil, nil, err
	}
	return a, a.orchestrator(cmd, a.runner(cmd)), nil
}

func runSpecStep(cmd *cobra.Command, step func(context.Context, *orchestrator.Orchestrator) (orchestrator.SpecResult, error), next string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, orch, err := specApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := step(ctx, orch)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			cmd.PrintErrln("\nInterrupted by user")
			return &exitError{code: 1}
		}
		return err
	}
	if !res.Success {
		cmd.PrintErrln(res.Message)
		return &exitError{code: 1}
	}
	if res.Report != nil {
		cmd.Printf("Verdict: %s (%d blocking, %d warnings, %d suggestions)\n",
			res.Report.Verdict, res.Report.Blocking, res.Report.Warnings, res.Report.Suggestions)
	}
	cmd.Printf("\nNext: %s\n", next)
	return nil
}

func runSpecAuto(cmd *cobra.Command, _ []string) error {
	if specGoal == "" {
		return clierr.MissingOption("--goal",
			`claude-agent spec auto --goal "A CLI todo manager"`,
			"spec auto needs a goal to write the spec from", "")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, orch, err := specApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ok, err := orch.RunSpecWorkflow(ctx, specGoal, specContext)
	if err != nil {
		return err
	}
	if !ok {
		return &exitError{code: 1}
	}
	return nil
}

func runSpecStatus(cmd *cobra.Command, _ []string) error {
	dir, err := filepath.Abs(specProjectDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}
	state := ledger.LoadWorkflow(dir)
	phase := ledger.DerivePhase(dir)

	cmd.Printf("Phase: %s\n", phase)
	if state.SpecFile != nil {
		cmd.Printf("Spec file: %s\n", *state.SpecFile)
	}
	for _, f := range []struct{ label, path string }{
		{"Draft", ledger.FindSpecDraft(dir)},
		{"Validation report", ledger.FindSpecValidationReport(dir)},
		{"Validated spec", ledger.FindSpecValidated(dir)},
	} {
		if f.path != "" {
			cmd.Printf("%s: %s\n", f.label, f.path)
		}
	}
	if ledger.Exists(dir) {
		passing, total := ledger.CountPassing(dir)
		cmd.Printf("Feature list: %d/%d passing\n", passing, total)
	}
	if len(state.History) > 0 {
		cmd.Println("\nHistory:")
		for _, h := range state.History {
			cmd.Printf("  %v  %v  %v\n", h["timestamp"], h["step"], h["status"])
		}
	}

	switch phase {
	case ledger.PhaseNone:
		cmd.Println("\nNext: claude-agent spec create --goal \"...\"")
	case ledger.PhaseCreated:
		cmd.Println("\nNext: claude-agent spec validate")
	case ledger.PhaseValidated:
		cmd.Println("\nNext: claude-agent spec decompose")
	default:
		cmd.Println("\nNext: claude-agent")
	}
	return nil
}
