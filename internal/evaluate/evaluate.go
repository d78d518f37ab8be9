// Package evaluate scores task output against worker success criteria
// and assigns a GREEN/YELLOW/RED verdict.
package evaluate

import (
	"fmt"
	"strconv"
	"strings"

	"workforce/pkg/models"
)

// Default verdict thresholds over the weighted pass fraction.
const (
	// DefaultGreenThreshold is the minimum weighted fraction for GREEN.
	DefaultGreenThreshold = 0.90
	// DefaultYellowThreshold is the minimum weighted fraction for YELLOW.
	DefaultYellowThreshold = 0.70
)

// Result holds the outcome of evaluating one task output.
type Result struct {
	// Score is the weighted fraction of criteria met, 0..1.
	Score float64
	// Verdict is the thresholded quality classification.
	Verdict models.Verdict
	// FailedCriteria names the criteria that did not pass.
	FailedCriteria []string
	// BlockingFailed indicates a blocking criterion failed, forcing RED.
	BlockingFailed bool
}

// Evaluator applies per-task success criteria. The criteria themselves
// come from the routed worker's capability declaration; the evaluator
// only checks them and thresholds the weighted pass fraction.
type Evaluator struct {
	greenThreshold  float64
	yellowThreshold float64
}

// New creates an evaluator with the default 90/70 thresholds.
func New() *Evaluator {
	return &Evaluator{
		greenThreshold:  DefaultGreenThreshold,
		yellowThreshold: DefaultYellowThreshold,
	}
}

// NewWithThresholds creates an evaluator with custom thresholds.
// Values outside (0, 1] fall back to the defaults.
func NewWithThresholds(green, yellow float64) *Evaluator {
	e := New()
	if green > 0 && green <= 1 {
		e.greenThreshold = green
	}
	if yellow > 0 && yellow <= 1 {
		e.yellowThreshold = yellow
	}
	return e
}

// Score evaluates output against the criteria and returns the weighted
// score and verdict.
func (e *Evaluator) Score(output string, criteria []models.Criterion) (float64, models.Verdict) {
	res := e.Evaluate(output, criteria)
	return res.Score, res.Verdict
}

// Evaluate evaluates output against the criteria. Percentages are
// computed over weighted criteria, not raw counts; a failing blocking
// criterion forces RED regardless of the aggregate. A task with no
// declared criteria passes GREEN.
func (e *Evaluator) Evaluate(output string, criteria []models.Criterion) *Result {
	if len(criteria) == 0 {
		return &Result{Score: 1, Verdict: models.VerdictGreen}
	}

	var totalWeight, metWeight float64
	res := &Result{}
	for _, c := range criteria {
		w := c.EffectiveWeight()
		totalWeight += w
		if check(c, output) {
			metWeight += w
			continue
		}
		res.FailedCriteria = append(res.FailedCriteria, c.Name)
		if c.Blocking {
			res.BlockingFailed = true
		}
	}

	res.Score = metWeight / totalWeight
	switch {
	case res.BlockingFailed:
		res.Verdict = models.VerdictRed
	case res.Score >= e.greenThreshold:
		res.Verdict = models.VerdictGreen
	case res.Score >= e.yellowThreshold:
		res.Verdict = models.VerdictYellow
	default:
		res.Verdict = models.VerdictRed
	}
	return res
}

// check applies one built-in check to the output. Unknown checks never
// pass, so a typo in a manifest surfaces as a failing criterion instead
// of silently inflating the score.
func check(c models.Criterion, output string) bool {
	switch c.Check {
	case models.CheckNonEmpty:
		return strings.TrimSpace(output) != ""
	case models.CheckContains:
		return c.Arg != "" && strings.Contains(strings.ToLower(output), strings.ToLower(c.Arg))
	case models.CheckMinWords:
		min, err := strconv.Atoi(c.Arg)
		if err != nil || min < 0 {
			return false
		}
		return len(strings.Fields(output)) >= min
	case models.CheckNoErrorMarker:
		return !strings.HasPrefix(strings.TrimSpace(output), "ERROR:")
	default:
		return false
	}
}

// Feedback renders an evaluation result as retry context for the next
// attempt's worker input.
func Feedback(res *Result) string {
	if res == nil || len(res.FailedCriteria) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Previous attempt scored %.0f%% (%s). Unmet criteria:\n", res.Score*100, res.Verdict)
	for _, name := range res.FailedCriteria {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	b.WriteString("Address the unmet criteria in your next output.")
	return b.String()
}
