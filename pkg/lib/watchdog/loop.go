package watchdog

import (
	"context"
	"path/filepath"
	"syscall"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/runner"
)

func (wd *Watchdog) loop(ctx context.Context) {
	ticker := wd.clock.NewTicker(wd.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wd.stop:
			wd.shutdown()
			return
		case <-ctx.Done():
			wd.shutdown()
			return
		case <-ticker.C:
			if !wd.check(ctx) {
				return
			}
		}
	}
}

// check runs one supervision step and reports whether the loop goes on.
func (wd *Watchdog) check(ctx context.Context) bool {
	wd.mu.Lock()
	current := wd.current
	restarts := wd.status.Restarts
	wd.mu.Unlock()

	if current != nil {
		st, exited := current.Process.Poll()
		if !exited {
			return true
		}
		wd.logger.Info("supervised process exited", "pid", current.PID, "exit_code", st.ExitCode,
			"signal", st.Signal, "restarts", restarts)
		if err := wd.starter.Release(current.ID); err != nil {
			wd.logger.Debug("release failed", "id", current.ID, "error", err)
		}

		wd.mu.Lock()
		wd.current = nil
		wd.status.PID = 0
		wd.status.ProcessID = ""
		wd.status.Exits = append(wd.status.Exits, Exit{PID: current.PID, Status: st, At: wd.clock.Now()})
		wd.mu.Unlock()
	}

	if restarts >= wd.cfg.MaxRestarts {
		wd.logger.Warn("restart budget exhausted", "max_restarts", wd.cfg.MaxRestarts)
		wd.finish(ReasonRestartBudgetExhausted)
		return false
	}

	wd.mu.Lock()
	wd.status.State = StateRestarting
	wd.status.Restarts++
	wd.mu.Unlock()

	if wd.cfg.RestartDelay > 0 {
		select {
		case <-wd.clock.After(wd.cfg.RestartDelay):
		case <-wd.stop:
			wd.finish(ReasonStopRequested)
			return false
		case <-ctx.Done():
			wd.finish(ReasonStopRequested)
			return false
		}
	}

	res, err := wd.starter.Start(wd.cfg.Command)
	if err != nil {
		wd.logger.Warn("respawn failed", "command", wd.cfg.Command.String(), "error", err)
		// stays Restarting; the next tick retries while budget remains
		wd.mu.Lock()
		wd.status.Exits = append(wd.status.Exits, Exit{SpawnError: err, At: wd.clock.Now()})
		wd.mu.Unlock()
		return true
	}

	wd.mu.Lock()
	wd.current = res
	wd.status.State = StateRunning
	wd.status.Spawns++
	wd.status.PID = res.PID
	wd.status.ProcessID = res.ID
	wd.mu.Unlock()

	wd.logger.Info("supervised process restarted", "pid", res.PID, "restarts", restarts+1)
	wd.describe(ctx, res.PID)
	return true
}

func (wd *Watchdog) shutdown() {
	wd.mu.Lock()
	current := wd.current
	wd.mu.Unlock()

	if current != nil && wd.cfg.TerminateOnStop {
		wd.terminate(current)
		if err := wd.starter.Release(current.ID); err != nil {
			wd.logger.Debug("release failed", "id", current.ID, "error", err)
		}
	}
	wd.logger.Info("watchdog stopped", "reason", ReasonStopRequested.String())
	wd.finish(ReasonStopRequested)
}

func (wd *Watchdog) terminate(current *runner.StartResult) {
	process := current.Process
	if _, exited := process.Poll(); exited {
		return
	}

	if wd.cfg.StopGrace > 0 {
		wd.logger.Info("terminating supervised process", "pid", current.PID, "grace", wd.cfg.StopGrace)
		if err := process.Signal(syscall.SIGTERM); err != nil {
			wd.logger.Warn("SIGTERM failed", "pid", current.PID, "error", err)
		}
		select {
		case <-process.Done():
			return
		case <-wd.clock.After(wd.cfg.StopGrace):
			wd.logger.Warn("grace period elapsed", "pid", current.PID)
		}
	}

	if err := process.Kill(); err != nil {
		wd.logger.Warn("kill failed", "pid", current.PID, "error", err)
	}
	<-process.Done()
}

func processName(command string) string {
	return filepath.Base(command)
}
