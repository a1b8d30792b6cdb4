package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/claude-agent/internal/clierr"
	"github.com/fyrsmithlabs/claude-agent/internal/evaluation"
	"github.com/fyrsmithlabs/claude-agent/internal/monitor"
)

var (
	evalSpec    string
	evalJSON    bool
	evalWeights evaluation.Weights
)

func init() {
	rootCmd.AddCommand(evaluateCmd)
	d := evaluation.DefaultWeights()
	f := evaluateCmd.Flags()
	f.StringVarP(&evalSpec, "spec", "s", "", "spec file to measure coverage against (default: the project spec)")
	f.BoolVar(&evalJSON, "json", false, "output as JSON")
	f.Float64Var(&evalWeights.Coverage, "coverage-weight", d.Coverage, "weight of spec coverage")
	f.Float64Var(&evalWeights.Testability, "testability-weight", d.Testability, "weight of testability")
	f.Float64Var(&evalWeights.Granularity, "granularity-weight", d.Granularity, "weight of granularity")
	f.Float64Var(&evalWeights.Independence, "independence-weight", d.Independence, "weight of independence")
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [project_dir]",
	Short: "Score feature_list.json against the spec",
	Long: `Score the generated feature list on spec coverage, testability,
granularity and independence. Weights must sum to 1.

Examples:
  claude-agent evaluate ./my-project
  claude-agent evaluate ./my-project --spec ./SPEC.md --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}

	res, err := evaluation.LoadAndEvaluate(dir, evalSpec, evalWeights)
	if errors.Is(err, evaluation.ErrNoFeatureList) {
		return clierr.MissingFile("feature_list.json", "claude-agent spec decompose", "evaluate scores an existing feature list")
	}
	if err != nil {
		return clierr.New(err.Error(), "", "claude-agent evaluate --coverage-weight 0.4 --testability-weight 0.3 --granularity-weight 0.2 --independence-weight 0.1", "")
	}

	if evalJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Features:      %d\n\n", res.FeatureCount)
	cmd.Printf("Coverage:      %s  (weight %.2f)\n", monitor.FormatPercentage(res.Coverage), res.Weights.Coverage)
	cmd.Printf("Testability:   %s  (weight %.2f)\n", monitor.FormatPercentage(res.Testability), res.Weights.Testability)
	cmd.Printf("Granularity:   %s  (weight %.2f)\n", monitor.FormatPercentage(res.Granularity), res.Weights.Granularity)
	cmd.Printf("Independence:  %s  (weight %.2f)\n", monitor.FormatPercentage(res.Independence), res.Weights.Independence)
	cmd.Printf("\nAggregate:     %s\n", monitor.FormatPercentage(res.Aggregate))

	if len(res.Uncovered) > 0 {
		cmd.Println("\nRequirements with no matching feature:")
		for _, u := range res.Uncovered {
			cmd.Printf("  - %s\n", u)
		}
	}
	return nil
}
