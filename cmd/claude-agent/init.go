package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/claude-agent/internal/clierr"
	"github.com/fyrsmithlabs/claude-agent/internal/config"
	"github.com/fyrsmithlabs/claude-agent/internal/fileutil"
)

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file without asking")
}

// initCmd writes a config template
var initCmd = &cobra.Command{
	Use:   "init [project_dir]",
	Short: "Initialize a project with a config file template",
	Long: `Write a commented .claude-agent.yaml template into the project directory.

Examples:
  # Initialize the current directory
  claude-agent init

  # Initialize a new project, replacing any existing config
  claude-agent init ./my-project --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	path := filepath.Join(dir, config.FileNames[0])
	if fileutil.Exists(path) && !initForce {
		cmd.Printf("Config file already exists: %s\n", path)
		if !confirmer(cmd.InOrStdin(), cmd.OutOrStdout())("Overwrite?", false) {
			return nil
		}
	}

	if err := fileutil.AtomicWrite(path, []byte(config.Template())); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	cmd.Printf("Created config file: %s\n", path)
	cmd.Println("\nEdit this file to configure your project, then run:")
	cmd.Printf("  claude-agent %s\n", clierr.QuotePath(dir))
	return nil
}
