package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	Long:  `List recent runs, newest first, with status, verdict, and cost.`,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := openStateDB()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, run := range runs {
		goal := run.Goal
		if len(goal) > 48 {
			goal = goal[:48] + "..."
		}
		fmt.Printf("%s  %-11s %-7s %7.2f EUR  %s\n",
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			renderRunStatus(run.Status),
			renderVerdict(run.Verdict),
			run.Cost,
			goal)
		fmt.Printf("    %s\n", run.ID)
	}
	return nil
}
