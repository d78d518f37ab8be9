package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootVerbose bool

var rootCmd = &cobra.Command{
	Use:   "workforce",
	Short: "Goal execution orchestrator",
	Long: `Workforce turns a high-level goal into a budgeted, quality-gated
execution across a registry of delegated workers.

A submitted goal is routed to matching worker types, planned as a
dependency graph, and executed wave by wave. Every task output is
scored against the worker's success criteria and gets a GREEN, YELLOW,
or RED verdict; weak output is retried with feedback, and spend is
enforced against per-run and daily budgets.

Past run outcomes are recorded and recalled for similar future goals.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the CLI logger. Debug output goes to stderr so run
// results on stdout stay parseable.
func newLogger() (*zap.Logger, error) {
	if rootVerbose {
		cfg := zap.NewDevelopmentConfig()
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
