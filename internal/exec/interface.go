// Package exec provides an interface for command execution.
package exec

import (
	"context"
)

// Invocation describes one command execution.
type Invocation struct {
	// WorkDir is the working directory, or empty for the process default.
	WorkDir string
	// Command is the shell command line, run through "sh -c".
	Command string
	// Stdin is piped to the command's standard input.
	Stdin string
	// Env holds extra KEY=VALUE pairs appended to the environment.
	Env []string
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a shell command and returns combined stdout/stderr
	// output. A non-zero exit is reported through err with whatever
	// output was produced.
	Run(ctx context.Context, inv Invocation) (output []byte, err error)
}
