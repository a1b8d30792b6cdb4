package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/claude-agent/internal/metrics"
	"github.com/fyrsmithlabs/claude-agent/internal/monitor"
)

var driftJSON bool

func init() {
	rootCmd.AddCommand(driftCmd)
	driftCmd.Flags().BoolVar(&driftJSON, "json", false, "output as JSON")
}

var driftCmd = &cobra.Command{
	Use:   "drift [project_dir]",
	Short: "Show drift metrics for coding sessions",
	Long: `Show the drift metrics recorded after each coding session and validator
attempt: totals, regression and rejection rates, the velocity trend and
any aggregates that disagree with the detail records.

Examples:
  claude-agent drift ./my-project
  claude-agent drift ./my-project --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDrift,
}

// driftReport is the --json output.
type driftReport struct {
	Path            string                `json:"path"`
	Metrics         *metrics.DriftMetrics `json:"metrics"`
	Indicators      metrics.Indicators    `json:"indicators"`
	IntegrityIssues []string              `json:"integrity_issues"`
}

func runDrift(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	store := statusSource(dir).Metrics
	m := store.Load(cmd.Context())
	ind := metrics.CalculateDriftIndicators(m, store.Tuning())
	issues := metrics.ValidateIntegrity(m, store.Tuning().Epsilon)
	if issues == nil {
		issues = []string{}
	}

	if driftJSON {
		data, err := json.MarshalIndent(driftReport{
			Path:            store.Path(),
			Metrics:         m,
			Indicators:      ind,
			IntegrityIssues: issues,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal drift report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if m.TotalSessions == 0 && len(m.ValidationAttempts) == 0 {
		cmd.Printf("No drift metrics recorded yet (%s)\n", store.Path())
		return nil
	}

	cmd.Printf("Drift metrics: %s\n\n", store.Path())
	cmd.Printf("Coding sessions:          %d\n", m.TotalSessions)
	cmd.Printf("Features per session:     %.2f\n", m.AverageFeaturesPerSession)
	cmd.Printf("Multi-feature sessions:   %d\n", m.MultiFeatureSessionCount)
	cmd.Printf("Incomplete evaluations:   %d\n", m.IncompleteEvaluationCount)
	cmd.Printf("Regressions caught:       %d\n", m.TotalRegressionsCaught)
	cmd.Printf("Validation attempts:      %d (%d rejected)\n", len(m.ValidationAttempts), m.RejectionCount)
	cmd.Println()
	cmd.Printf("Regression rate:  %s\n", monitor.FormatPercentage(ind.RegressionRate/100))
	cmd.Printf("Rejection rate:   %s\n", monitor.FormatPercentage(ind.RejectionRate/100))
	cmd.Printf("Velocity trend:   %s\n", ind.VelocityTrend)

	if len(issues) > 0 {
		cmd.Println("\nIntegrity issues:")
		for _, issue := range issues {
			cmd.Printf("  - %s\n", issue)
		}
	}
	return nil
}
