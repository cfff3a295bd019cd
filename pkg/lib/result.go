package lib

import (
	"fmt"
	"time"
)

// RunStatus is the outcome class of a single blocking run.
type RunStatus int

const (
	RunStatusUnspecified RunStatus = iota
	// RunStatusExited means the process exited on its own; ExitCode is set.
	RunStatusExited
	// RunStatusTimedOut means the process outlived its timeout and was killed.
	RunStatusTimedOut
	// RunStatusSpawnFailed means the process never started.
	RunStatusSpawnFailed
	// RunStatusTerminated means the process was killed before exiting, either
	// because the caller's context ended or by an outside signal.
	RunStatusTerminated
)

func (s RunStatus) String() string {
	switch s {
	case RunStatusExited:
		return "exited"
	case RunStatusTimedOut:
		return "timed out"
	case RunStatusSpawnFailed:
		return "spawn failed"
	case RunStatusTerminated:
		return "terminated"
	default:
		return "unspecified"
	}
}

// RunResult is the immutable record of one Run. Producers fill it in before
// handing it out; nothing mutates it afterwards.
type RunResult struct {
	ID         string
	Command    Command
	Status     RunStatus
	ExitCode   *int
	Stdout     string
	Stderr     string
	StartedAt  time.Time
	FinishedAt time.Time
	// SpawnError is the reason a SpawnFailed run never started.
	SpawnError error
}

// Succeeded reports whether the process exited with code 0.
func (r *RunResult) Succeeded() bool {
	return r.Status == RunStatusExited && r.ExitCode != nil && *r.ExitCode == 0
}

// Duration is the wall-clock time between start and finish.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Err maps the result to a typed error. It returns nil when the process
// exited, whatever its exit code.
func (r *RunResult) Err() error {
	switch r.Status {
	case RunStatusExited:
		return nil
	case RunStatusTimedOut:
		return fmt.Errorf("%s: %w", r.Command.Command, ErrTimedOut)
	case RunStatusSpawnFailed:
		return fmt.Errorf("%s: %w: %v", r.Command.Command, ErrSpawnFailed, r.SpawnError)
	case RunStatusTerminated:
		return fmt.Errorf("%s: %w", r.Command.Command, ErrTerminated)
	default:
		return fmt.Errorf("%s: unknown run status %d", r.Command.Command, r.Status)
	}
}
