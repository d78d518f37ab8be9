package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"workforce/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show the state of a run",
	Long: `Display the state of a run and its tasks.

Shows per-task status, verdict, retries, and cost, plus run-level
progress and budget consumption.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, err := openStateDB()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.GetRunWithTasks(args[0])
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", args[0])
	}

	fmt.Printf("Run %s\n", run.ID)
	fmt.Printf("Goal:     %s\n", run.Goal)
	fmt.Printf("Status:   %s\n", renderRunStatus(run.Status))
	fmt.Printf("Verdict:  %s\n", renderVerdict(run.Verdict))
	fmt.Printf("Progress: %.0f%%\n", run.Progress()*100)
	fmt.Printf("Cost:     %.2f EUR", run.Cost)
	if run.BudgetLimit > 0 {
		fmt.Printf(" / %.2f EUR", run.BudgetLimit)
	}
	fmt.Println()
	if run.BudgetExceeded {
		fmt.Println("Budget exhausted: partial result")
	}

	if len(run.Tasks) > 0 {
		fmt.Println("\nTasks:")
		for _, task := range run.Tasks {
			fmt.Printf("  wave %d  %-10s %-12s %s", task.Wave, renderTaskStatus(task.Status), task.Worker, renderVerdict(task.Verdict))
			if task.RetryCount > 0 {
				fmt.Printf("  (%d retries)", task.RetryCount)
			}
			if task.Error != "" {
				fmt.Printf("  %s", task.Error)
			}
			fmt.Println()
		}
	}
	return nil
}

// openStateDB opens the project state database, falling back to the
// global one.
func openStateDB() (*state.DB, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		dbPath = state.GlobalDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no run history found. Run 'workforce run <goal>' first")
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
