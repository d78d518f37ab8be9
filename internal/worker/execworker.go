package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"workforce/internal/exec"
)

// defaultTimeout bounds one worker command invocation.
const defaultTimeout = 30 * time.Minute

// ExecWorker runs a shell command per task. The task input is piped to
// stdin and also exported as WORKFORCE_TASK_INPUT. Command failures are
// recoverable by contract: they come back as an "ERROR:"-marked output
// with the cost still reported, so the evaluator scores them instead of
// the scheduler seeing a fault.
type ExecWorker struct {
	name        string
	command     string
	workDir     string
	costPerTask float64
	timeout     time.Duration
	runner      exec.CommandRunner
	logger      *zap.Logger
}

// NewExecWorker creates a command-backed worker.
func NewExecWorker(name, command, workDir string, costPerTask float64, timeout time.Duration, runner exec.CommandRunner, logger *zap.Logger) (*ExecWorker, error) {
	if command == "" {
		return nil, fmt.Errorf("worker %s has no command", name)
	}
	if runner == nil {
		runner = exec.NewRunner()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ExecWorker{
		name:        name,
		command:     command,
		workDir:     workDir,
		costPerTask: costPerTask,
		timeout:     timeout,
		runner:      runner,
		logger:      logger,
	}, nil
}

// Execute implements Worker.
func (w *ExecWorker) Execute(ctx context.Context, input string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	out, err := w.runner.Run(ctx, exec.Invocation{
		WorkDir: w.workDir,
		Command: w.command,
		Stdin:   input,
		Env:     []string{"WORKFORCE_TASK_INPUT=" + input, "WORKFORCE_WORKER=" + w.name},
	})
	duration := time.Since(start)

	result := &Result{
		Output: string(out),
		Cost:   w.costPerTask,
		Metadata: map[string]string{
			"worker":      w.name,
			"duration_ms": strconv.FormatInt(duration.Milliseconds(), 10),
		},
	}

	if err != nil {
		w.logger.Warn("worker command failed",
			zap.String("worker", w.name),
			zap.Duration("duration", duration),
			zap.Error(err))
		result.Output = fmt.Sprintf("ERROR: %v\n%s", err, out)
		result.Metadata["exit"] = "error"
		return result, nil
	}

	result.Metadata["exit"] = "0"
	return result, nil
}

var _ Worker = (*ExecWorker)(nil)
