package runner

import (
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/spawner"
)

type StartResult struct {
	ID      string
	PID     int
	Process spawner.Process
	Status  *lib.ProcessStatus
}

// Start starts a new process without waiting for it, returning its generated
// identifier and initial status. The process stays registered until Release.
func (runner *Runner) Start(command lib.Command) (*StartResult, error) {
	processId := lib.NewID()

	entry, err := runner.spawn(processId, command)
	if err != nil {
		return nil, err
	}

	runner.mu.Lock()
	runner.processes[processId] = entry
	runner.mu.Unlock()

	status, _ := entry.process.Poll()

	return &StartResult{ID: processId, PID: entry.process.PID(), Process: entry.process, Status: &status}, nil
}
