package runner

import (
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
)

type StatusResult struct {
	Command *lib.Command
	PID     int
	Status  *lib.ProcessStatus
}

// Status returns the current process and status by identifier.
func (runner *Runner) Status(id string) (*StatusResult, error) {
	pe, err := runner.getProcess(id)
	if err != nil {
		return nil, err
	}

	status, _ := pe.process.Poll()
	command := pe.command.Clone()

	return &StatusResult{Command: &command, PID: pe.process.PID(), Status: &status}, nil
}

// Release forgets a reaped process. Running processes stay registered and
// ErrStillRunning is returned.
func (runner *Runner) Release(id string) error {
	pe, err := runner.getProcess(id)
	if err != nil {
		return err
	}
	if _, exited := pe.process.Poll(); !exited {
		return ErrStillRunning
	}

	runner.mu.Lock()
	delete(runner.processes, id)
	runner.mu.Unlock()
	return nil
}

// Len returns the number of registered processes.
func (runner *Runner) Len() int {
	runner.mu.RLock()
	defer runner.mu.RUnlock()
	return len(runner.processes)
}

func (runner *Runner) getProcess(id string) (*processEntry, error) {
	runner.mu.RLock()
	pe := runner.processes[id]
	runner.mu.RUnlock()
	if pe == nil {
		return nil, lib.ErrProcessNotFound
	}
	return pe, nil
}
