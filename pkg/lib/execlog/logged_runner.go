package execlog

import (
	"context"
	"time"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
)

// Executor runs one command to completion; *runner.Runner implements it.
type Executor interface {
	Run(ctx context.Context, command lib.Command, timeout time.Duration) *lib.RunResult
}

// LoggedRunner runs commands and records every outcome.
type LoggedRunner struct {
	executor Executor
	logger   *Logger
}

func NewLoggedRunner(executor Executor, logger *Logger) *LoggedRunner {
	return &LoggedRunner{executor: executor, logger: logger}
}

// Run always returns the result. The error is non-nil only when the record
// could not be written and then wraps ErrLogWriteFailed.
func (r *LoggedRunner) Run(ctx context.Context, command lib.Command, timeout time.Duration) (*lib.RunResult, error) {
	result := r.executor.Run(ctx, command, timeout)
	return result, r.logger.LogRun(result)
}

// ExecuteAndLog runs command, records it and reports whether it exited 0.
func (r *LoggedRunner) ExecuteAndLog(ctx context.Context, command lib.Command, timeout time.Duration) (bool, error) {
	result, err := r.Run(ctx, command, timeout)
	return result.Succeeded(), err
}
