package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/claude-agent/internal/clierr"
	"github.com/fyrsmithlabs/claude-agent/internal/detection"
	"github.com/fyrsmithlabs/claude-agent/internal/doctor"
)

var (
	doctorJSON bool
	doctorFix  bool
)

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output the report as JSON")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "attempt safe fixes for failed checks")
}

var doctorCmd = &cobra.Command{
	Use:   "doctor [project_dir]",
	Short: "Check that claude-agent can run in this environment",
	Long: `Check the tools and files claude-agent needs: the claude CLI, git, the
stack's toolchain, puppeteer-mcp-server, a writable project directory
and a valid config file.

Exits with status 1 when any check fails.

Examples:
  claude-agent doctor ./my-project
  claude-agent doctor ./my-project --fix
  claude-agent doctor --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	d := doctor.New(verbose)
	report := d.Check(ctx, dir, detection.DetectStack(dir))
	color := !doctorJSON && clierr.ColorEnabled(cmd.OutOrStdout())

	if doctorJSON {
		data, err := doctor.FormatJSON(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
	} else {
		cmd.Print(doctor.FormatText(report, verbose, color))
	}

	if doctorFix && !report.Healthy() {
		ask := confirmer(cmd.InOrStdin(), cmd.OutOrStdout())
		fixes := d.Fix(ctx, report, func(prompt string) bool { return ask(prompt, false) })
		cmd.Print(doctor.FormatFixes(fixes, color))
		report = d.Check(ctx, dir, report.Stack)
	}

	if !report.Healthy() {
		return &exitError{code: 1}
	}
	return nil
}
