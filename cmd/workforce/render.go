package main

import (
	"github.com/fatih/color"

	"workforce/pkg/models"
)

// renderVerdict colors a verdict for terminal output.
func renderVerdict(v models.Verdict) string {
	switch v {
	case models.VerdictGreen:
		return color.GreenString(string(v))
	case models.VerdictYellow:
		return color.YellowString(string(v))
	case models.VerdictRed:
		return color.RedString(string(v))
	default:
		return "-"
	}
}

// renderTaskStatus colors a task status.
func renderTaskStatus(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusSucceeded:
		return color.GreenString(string(s))
	case models.TaskStatusFailed:
		return color.RedString(string(s))
	case models.TaskStatusSkipped:
		return color.YellowString(string(s))
	case models.TaskStatusRunning:
		return color.CyanString(string(s))
	default:
		return string(s)
	}
}

// renderRunStatus colors a run status.
func renderRunStatus(s models.RunStatus) string {
	switch s {
	case models.RunStatusCompleted:
		return color.GreenString(string(s))
	case models.RunStatusFailed:
		return color.RedString(string(s))
	case models.RunStatusCancelled:
		return color.YellowString(string(s))
	case models.RunStatusInProgress:
		return color.CyanString(string(s))
	default:
		return string(s)
	}
}
