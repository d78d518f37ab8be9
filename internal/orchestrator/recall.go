package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"workforce/internal/experience"
	"workforce/pkg/models"
)

// captureTimeout bounds the best-effort experience write after a run.
const captureTimeout = 5 * time.Second

// recallContext queries the experience store for past executions
// similar to the goal and renders them as task context. Recall is best
// effort: a slow or unavailable store costs the run nothing but the
// query timeout.
func (o *Orchestrator) recallContext(ctx context.Context, goal string) string {
	if o.exp == nil || !o.cfg.Experience.Enabled {
		return ""
	}

	qctx, cancel := context.WithTimeout(ctx, o.cfg.Experience.QueryTimeout)
	defer cancel()

	recs, err := o.exp.Query(qctx, goal, o.cfg.Experience.TopK, float32(o.cfg.Experience.SimilarityThreshold))
	if err != nil {
		o.logger.Warn("experience recall failed", zap.Error(err))
		return ""
	}
	if len(recs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant past executions:\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "- [%s, %.2f EUR] %s\n", r.Verdict, r.Cost, r.Outcome)
	}
	return b.String()
}

// captureExperience writes the run summary to the experience store.
// Best effort: failures are logged and swallowed.
func (o *Orchestrator) captureExperience(run *models.Run) {
	if o.exp == nil || !o.cfg.Experience.Enabled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()

	rec := experience.Record{
		RunID:   run.ID,
		Goal:    run.Goal,
		Outcome: summarizeOutcome(run),
		Verdict: run.Verdict,
		Status:  run.Status,
		Cost:    run.Cost,
	}
	if err := o.exp.Write(ctx, rec); err != nil {
		o.logger.Warn("experience capture failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// summarizeOutcome renders a short description of what the run
// produced, suitable as recall context for future goals.
func summarizeOutcome(run *models.Run) string {
	succeeded := 0
	for _, t := range run.Tasks {
		if t.Status == models.TaskStatusSucceeded {
			succeeded++
		}
	}
	breakdown := run.VerdictBreakdown()
	summary := fmt.Sprintf("%d/%d tasks succeeded (%d green, %d yellow, %d red)",
		succeeded, len(run.Tasks),
		breakdown[models.VerdictGreen], breakdown[models.VerdictYellow], breakdown[models.VerdictRed])

	if out := finalOutput(run); out != "" {
		summary += ": " + snippet(out, 200)
	}
	return summary
}

// finalOutput picks the most representative task output: the last-wave
// succeeded task, which for multi-worker runs is the synthesis result.
func finalOutput(run *models.Run) string {
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

func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
