package models

// Verdict classifies the quality of a task's or run's output.
type Verdict string

const (
	// VerdictGreen indicates the output meets or exceeds the quality threshold.
	VerdictGreen Verdict = "GREEN"
	// VerdictYellow indicates the output is below threshold but salvageable.
	VerdictYellow Verdict = "YELLOW"
	// VerdictRed indicates the output is unacceptable.
	VerdictRed Verdict = "RED"
)

// Valid returns true if the verdict is a known value.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictGreen, VerdictYellow, VerdictRed:
		return true
	default:
		return false
	}
}

// rank orders verdicts from best to worst. Unset verdicts rank below
// GREEN so any evaluated verdict dominates an aggregate seeded with
// the zero value.
func (v Verdict) rank() int {
	switch v {
	case VerdictRed:
		return 3
	case VerdictYellow:
		return 2
	case VerdictGreen:
		return 1
	default:
		return 0
	}
}

// Worst returns the worse of the two verdicts. RED dominates YELLOW,
// which dominates GREEN.
func (v Verdict) Worst(other Verdict) Verdict {
	if other.rank() > v.rank() {
		return other
	}
	return v
}
