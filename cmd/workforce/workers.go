package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"workforce/internal/config"
	"workforce/internal/worker"
)

var workersManifest string

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List workers from the manifest",
	Long:  `List the worker types declared in the manifest, with their routing keywords, cost, and criteria.`,
	RunE:  runWorkers,
}

func init() {
	workersCmd.Flags().StringVar(&workersManifest, "manifest", "", "Worker manifest path (overrides config)")
}

func runWorkers(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := cfg.Workers.Manifest
	if workersManifest != "" {
		path = workersManifest
	}

	manifest, err := worker.LoadManifest(path)
	if err != nil {
		return fmt.Errorf("load worker manifest %s: %w", path, err)
	}

	for _, w := range manifest.Workers {
		kind := ""
		if w.Synthesis {
			kind = " (synthesis)"
		}
		fmt.Printf("%s%s\n", w.Name, kind)
		if w.Description != "" {
			fmt.Printf("  %s\n", w.Description)
		}
		if len(w.Keywords) > 0 {
			fmt.Printf("  keywords:  %s\n", strings.Join(w.Keywords, ", "))
		}
		if len(w.Resources) > 0 {
			fmt.Printf("  resources: %s (parallel_safe: %t)\n", strings.Join(w.Resources, ", "), w.ParallelSafe)
		}
		fmt.Printf("  cost:      %.2f EUR/task\n", w.CostPerTask)
		if len(w.Criteria) > 0 {
			names := make([]string, len(w.Criteria))
			for i, c := range w.Criteria {
				names[i] = c.Name
			}
			fmt.Printf("  criteria:  %s\n", strings.Join(names, ", "))
		}
		fmt.Println()
	}
	return nil
}
