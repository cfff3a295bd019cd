package runner

import (
	"context"
	"time"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
)

// Run executes command and blocks until it exits, timeout elapses or ctx
// ends. A timeout of zero means none. On timeout or cancellation the
// process is killed and the result keeps the output captured so far. A
// child seen exiting on its own is reported Exited even when the kill
// raced with it.
//
// Run never returns an error: spawn failures come back as a result with
// Status RunStatusSpawnFailed.
func (runner *Runner) Run(ctx context.Context, command lib.Command, timeout time.Duration) *lib.RunResult {
	result := &lib.RunResult{
		ID:        lib.NewID(),
		Command:   command.Clone(),
		StartedAt: time.Now(),
	}

	entry, err := runner.spawn(result.ID, command)
	if err != nil {
		result.Status = lib.RunStatusSpawnFailed
		result.SpawnError = err
		result.FinishedAt = time.Now()
		return result
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	status := lib.RunStatusExited
	select {
	case <-entry.process.Done():
	case <-expired:
		status = lib.RunStatusTimedOut
		runner.kill(entry, "timeout")
	case <-ctx.Done():
		status = lib.RunStatusTerminated
		runner.kill(entry, "context done")
	}

	final := entry.process.Wait()
	result.FinishedAt = time.Now()
	result.Stdout = entry.stdout.String()
	result.Stderr = entry.stderr.String()

	switch {
	case final.ExitCode != nil && !final.Terminated:
		// a self-exit observed by the waiter wins over a kill raced with it
		status = lib.RunStatusExited
		result.ExitCode = final.ExitCode
	case status == lib.RunStatusExited:
		// killed from outside
		status = lib.RunStatusTerminated
	}
	result.Status = status

	runner.logger.Debug("run finished", "id", result.ID, "status", status.String(), "duration", result.Duration())
	return result
}

func (runner *Runner) kill(entry *processEntry, reason string) {
	runner.logger.Info("killing process", "id", entry.id, "pid", entry.process.PID(), "reason", reason)
	if err := entry.process.Kill(); err != nil {
		runner.logger.Warn("kill failed", "id", entry.id, "error", err)
	}
}
