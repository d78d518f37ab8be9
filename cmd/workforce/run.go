package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"workforce/internal/approval"
	"workforce/internal/config"
	"workforce/internal/exec"
	"workforce/internal/experience"
	"workforce/internal/notify"
	"workforce/internal/orchestrator"
	"workforce/internal/signal"
	"workforce/internal/state"
	"workforce/internal/worker"
	"workforce/pkg/models"
)

var (
	runBudget      float64
	runPriority    int
	runAutoApprove bool
	runManifest    string
	runNoRecall    bool
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Execute a goal across the worker registry",
	Long: `Execute a goal end to end.

The goal is routed to matching worker types from the manifest, planned
as a dependency graph, and executed wave by wave within the run budget.
Each task output is scored against its worker's criteria; tasks scoring
YELLOW are retried with feedback, tasks scoring RED twice fail.

Tasks whose estimated cost crosses the approval threshold prompt for
confirmation unless --auto-approve is set.

Examples:
  workforce run "research competitor pricing for the beta launch"
  workforce run --budget 40 "build and deploy the landing page"
  workforce run --auto-approve "full go-to-market analysis"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGoal,
}

func init() {
	runCmd.Flags().Float64Var(&runBudget, "budget", 0, "Run budget in EUR (0 uses the configured default)")
	runCmd.Flags().IntVar(&runPriority, "priority", 0, "Run priority, 1 (highest) to 5 (background)")
	runCmd.Flags().BoolVar(&runAutoApprove, "auto-approve", false, "Approve high-cost tasks without prompting")
	runCmd.Flags().StringVar(&runManifest, "manifest", "", "Worker manifest path (overrides config)")
	runCmd.Flags().BoolVar(&runNoRecall, "no-recall", false, "Skip experience recall for this run")
}

func runGoal(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runManifest != "" {
		cfg.Workers.Manifest = runManifest
	}
	if runNoRecall {
		cfg.Experience.Enabled = false
	}

	manifest, err := worker.LoadManifest(cfg.Workers.Manifest)
	if err != nil {
		return fmt.Errorf("load worker manifest %s (run 'workforce init' to create one): %w", cfg.Workers.Manifest, err)
	}
	registry, err := worker.BuildRegistry(manifest, exec.NewRunner(), logger)
	if err != nil {
		return fmt.Errorf("build worker registry: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	db, err := state.OpenProject(cwd)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state database: %w", err)
	}

	expDir := cfg.Experience.DataDir
	if expDir == "" {
		expDir = filepath.Join(cwd, ".workforce", "experience")
	}
	expStore, err := experience.NewVectorStore(expDir)
	if err != nil {
		// Recall is a soft dependency; run without it.
		logger.Warn("experience store unavailable, continuing without recall")
		expStore = nil
	}
	if expStore != nil {
		defer expStore.Close()
	}

	signals, err := signal.NewManager(cwd)
	if err != nil {
		return fmt.Errorf("init signal manager: %w", err)
	}
	defer signals.Close()

	notifier := notify.New(logger)
	notifier.Register(progressListener())

	opts := orchestrator.Options{
		Registry: registry,
		Config:   cfg,
		Gate:     approval.Func(promptApproval),
		Notifier: notifier,
		StateDB:  db,
		Signals:  signals,
		Logger:   logger,
	}
	if expStore != nil {
		opts.Experience = expStore
	}
	orch, err := orchestrator.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Executing goal: %s\n\n", goal)
	run, err := orch.Submit(ctx, goal, orchestrator.Constraints{
		Budget:      runBudget,
		Priority:    runPriority,
		AutoApprove: runAutoApprove,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrUnroutableGoal) {
			fmt.Println("No worker matches this goal. Registered workers:")
			for _, c := range registry.Capabilities() {
				fmt.Printf("  %-12s %s\n", c.Name, c.Description)
			}
			return err
		}
		return err
	}

	printRun(run)
	return nil
}

// progressListener prints wave-level progress as the run executes.
func progressListener() notify.Listener {
	return notify.Func(func(e models.Event) {
		switch e.Type {
		case models.EventWaveCompleted:
			fmt.Printf("  %s %s\n", color.CyanString("wave"), e.Message)
		case models.EventBudgetExceeded:
			fmt.Printf("  %s %s\n", color.RedString("budget"), e.Message)
		}
	})
}

// promptApproval asks the operator to confirm a high-cost task on the
// terminal. Anything but an explicit yes is a denial.
func promptApproval(ctx context.Context, description string, estimatedCost float64) (bool, error) {
	fmt.Printf("\n%s %s\n", color.YellowString("approval required:"), description)
	fmt.Print("Proceed? [y/N]: ")

	answerCh := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		answerCh <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		fmt.Println()
		return false, nil
	case answer := <-answerCh:
		return answer == "y" || answer == "yes", nil
	}
}

// printRun renders the terminal run summary.
func printRun(run *models.Run) {
	fmt.Println()
	fmt.Printf("Run %s: %s\n", run.ID, renderRunStatus(run.Status))
	fmt.Printf("Verdict: %s  Cost: %.2f EUR", renderVerdict(run.Verdict), run.Cost)
	if run.BudgetLimit > 0 {
		fmt.Printf(" / %.2f EUR", run.BudgetLimit)
	}
	fmt.Println()
	if run.BudgetExceeded {
		color.Red("Budget exhausted: partial result")
	}
	if run.Error != "" {
		color.Red("Error: %s", run.Error)
	}

	fmt.Println("\nTasks:")
	for _, task := range run.Tasks {
		fmt.Printf("  %-10s %-12s %s", renderTaskStatus(task.Status), task.Worker, renderVerdict(task.Verdict))
		if task.RetryCount > 0 {
			fmt.Printf("  (%d retries)", task.RetryCount)
		}
		if task.Cost > 0 {
			fmt.Printf("  %.2f EUR", task.Cost)
		}
		if task.Error != "" {
			fmt.Printf("  %s", color.RedString(task.Error))
		}
		fmt.Println()
	}

	if out := lastSucceededOutput(run); out != "" {
		fmt.Println("\nResult:")
		fmt.Println(indent(out, "  "))
	}
}

// lastSucceededOutput returns the output of the deepest-wave succeeded
// task, which for multi-worker runs is the synthesis result.
func lastSucceededOutput(run *models.Run) string {
	var best *models.Task
	for _, t := range run.Tasks {
		if t.Status != models.TaskStatusSucceeded || t.Output == "" {
			continue
		}
		if best == nil || t.Wave > best.Wave {
			best = t
		}
	}
	if best == nil {
		return ""
	}
	return best.Output
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
