package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"workforce/internal/signal"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <run-id>",
	Short: "Cancel a running goal",
	Long: `Request cancellation of a run.

The signal is picked up at the next wave boundary: tasks already in
flight finish, later waves never start. Works from a different shell
than the one executing the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	signals, err := signal.NewManager(cwd)
	if err != nil {
		return fmt.Errorf("init signal manager: %w", err)
	}
	defer signals.Close()

	if err := signals.RequestCancel(args[0]); err != nil {
		return fmt.Errorf("write cancel signal: %w", err)
	}
	fmt.Printf("Cancellation requested for %s. The run stops at the next wave boundary.\n", args[0])
	return nil
}
