package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/claude-agent/internal/architecture"
	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
)

func init() {
	rootCmd.AddCommand(validateArchCmd)
}

var validateArchCmd = &cobra.Command{
	Use:   "validate-arch [project_dir]",
	Short: "Validate the locked architecture files",
	Long: `Check that architecture/contracts.yaml, schemas.yaml and decisions.yaml
exist and load cleanly. Decisions that reference feature indexes outside
feature_list.json are reported as warnings.

Exits with status 1 when a file is missing or invalid.

Examples:
  claude-agent validate-arch ./my-project`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidateArch,
}

func runValidateArch(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}

	ok, errs := architecture.ValidateFiles(dir)
	if !ok {
		cmd.Println("Architecture validation failed:")
		for _, e := range errs {
			cmd.Printf("  - %s\n", e)
		}
		return &exitError{code: 1}
	}
	cmd.Printf("Architecture files are valid: %s\n", architecture.Dir(dir))

	if decisions, err := architecture.LoadDecisions(dir); err == nil && ledger.Exists(dir) {
		_, total := ledger.CountPassing(dir)
		if warnings := architecture.ValidateFeatureRefs(decisions, total); len(warnings) > 0 {
			cmd.Println("\nWarnings:")
			for _, w := range warnings {
				cmd.Printf("  - %s\n", w)
			}
		}
	}
	return nil
}
