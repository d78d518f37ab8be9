package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"workforce/internal/worker"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a workforce project",
	Long: `Initialize a directory for use with workforce.

Creates the .workforce directory for state, signals, and experience
data, plus a starter workers.yaml manifest and a .workforce.yaml
project config.

The directory argument is optional and defaults to the current directory.

Examples:
  workforce init              # Initialize current directory
  workforce init ./myproject  # Initialize specific directory
  workforce init --force      # Overwrite an existing manifest`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing manifest and config")
}

const sampleProjectConfig = `# Project-level workforce configuration.
# Values here override ~/.config/workforce/config.yaml.
budgets:
  run_limit: 25.0
  daily_limit: 100.0
  approval_threshold: 50.0
scheduler:
  max_parallel: 4
  retry_limit: 2
workers:
  manifest: workers.yaml
`

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing workforce in %s...\n\n", absPath)

	for _, dir := range []string{
		filepath.Join(absPath, ".workforce"),
		filepath.Join(absPath, ".workforce", "signals"),
		filepath.Join(absPath, "workers"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	wrote, err := writeIfAbsent(filepath.Join(absPath, "workers.yaml"), worker.SampleManifest)
	if err != nil {
		return err
	}
	reportFile("workers.yaml", wrote)

	wrote, err = writeIfAbsent(filepath.Join(absPath, ".workforce.yaml"), sampleProjectConfig)
	if err != nil {
		return err
	}
	reportFile(".workforce.yaml", wrote)

	fmt.Println()
	color.Green("Done.")
	fmt.Println("Next steps:")
	fmt.Println("  1. Put executable worker scripts under workers/ (see workers.yaml)")
	fmt.Println("  2. workforce run \"your first goal\"")
	return nil
}

func writeIfAbsent(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil && !initForce {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

func reportFile(name string, wrote bool) {
	if wrote {
		fmt.Printf("  created %s\n", name)
	} else {
		fmt.Printf("  kept existing %s (use --force to overwrite)\n", name)
	}
}
