package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"workforce/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify workforce configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/workforce/config.yaml
Project-specific overrides can be placed in .workforce.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("budgets.run_limit: %.2f\n", cfg.Budgets.RunLimit)
	fmt.Printf("budgets.daily_limit: %.2f\n", cfg.Budgets.DailyLimit)
	fmt.Printf("budgets.approval_threshold: %.2f\n", cfg.Budgets.ApprovalThreshold)
	fmt.Printf("budgets.approval_timeout: %s\n", cfg.Budgets.ApprovalTimeout)
	fmt.Printf("scheduler.max_parallel: %d\n", cfg.Scheduler.MaxParallel)
	fmt.Printf("scheduler.retry_limit: %d\n", cfg.Scheduler.RetryLimit)
	fmt.Printf("quality.green_threshold: %.2f\n", cfg.Quality.GreenThreshold)
	fmt.Printf("quality.yellow_threshold: %.2f\n", cfg.Quality.YellowThreshold)
	fmt.Printf("experience.enabled: %t\n", cfg.Experience.Enabled)
	fmt.Printf("experience.top_k: %d\n", cfg.Experience.TopK)
	fmt.Printf("experience.similarity_threshold: %.2f\n", cfg.Experience.SimilarityThreshold)
	fmt.Printf("workers.manifest: %s\n", cfg.Workers.Manifest)
	fmt.Printf("workers.timeout: %s\n", cfg.Workers.Timeout)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	switch key {
	case "budgets.run_limit":
		fmt.Printf("%.2f\n", cfg.Budgets.RunLimit)
	case "budgets.daily_limit":
		fmt.Printf("%.2f\n", cfg.Budgets.DailyLimit)
	case "budgets.approval_threshold":
		fmt.Printf("%.2f\n", cfg.Budgets.ApprovalThreshold)
	case "scheduler.max_parallel":
		fmt.Printf("%d\n", cfg.Scheduler.MaxParallel)
	case "scheduler.retry_limit":
		fmt.Printf("%d\n", cfg.Scheduler.RetryLimit)
	case "experience.enabled":
		fmt.Printf("%t\n", cfg.Experience.Enabled)
	case "workers.manifest":
		fmt.Printf("%s\n", cfg.Workers.Manifest)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}
}

// setConfigKey sets a configuration value and saves.
func setConfigKey(cfg *config.Config, key, value string) {
	var err error
	switch key {
	case "budgets.run_limit":
		cfg.Budgets.RunLimit, err = strconv.ParseFloat(value, 64)
	case "budgets.daily_limit":
		cfg.Budgets.DailyLimit, err = strconv.ParseFloat(value, 64)
	case "budgets.approval_threshold":
		cfg.Budgets.ApprovalThreshold, err = strconv.ParseFloat(value, 64)
	case "scheduler.max_parallel":
		cfg.Scheduler.MaxParallel, err = strconv.Atoi(value)
	case "scheduler.retry_limit":
		cfg.Scheduler.RetryLimit, err = strconv.Atoi(value)
	case "experience.enabled":
		cfg.Experience.Enabled, err = strconv.ParseBool(value)
	case "workers.manifest":
		cfg.Workers.Manifest = value
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid value for %s: %v\n", key, err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s = %s\n", key, value)
}
