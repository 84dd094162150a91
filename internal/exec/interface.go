// Package exec provides supervised execution of the external task program.
package exec

import (
	"context"
	"time"
)

// Command describes one invocation of the external task program.
type Command struct {
	// Name is the program to run; Args are its arguments.
	Name string
	Args []string
	// Dir is the working directory for the process.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
	// Timeout is the hard wall-clock bound; the process is killed when it
	// is exceeded. Zero means no bound.
	Timeout time.Duration
}

// Result is the observed outcome of a supervised run.
type Result struct {
	// Stdout and Stderr are the captured output streams.
	Stdout string
	Stderr string
	// ExitCode is the process exit code; -1 when the process was killed.
	ExitCode int
	// Duration is the wall-clock run time.
	Duration time.Duration
	// TimedOut is true when the timeout bound killed the process.
	TimedOut bool
}

// CommandRunner defines the interface for running the external task program.
// This abstraction allows mocking execution in tests.
type CommandRunner interface {
	// Run executes the command and waits for it to finish or time out.
	// A nonzero exit code is reported through Result, not through err;
	// err covers failures to launch or supervise the process.
	Run(ctx context.Context, cmd Command) (Result, error)
}
