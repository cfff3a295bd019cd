package runner

import (
	"fmt"
	"time"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
)

const stopWait = time.Second

// StopResult returns process info and its final status after Stop.
type StopResult struct {
	Command *lib.Command
	Status  *lib.ProcessStatus
}

// Stop kills the process by identifier and returns its final status, or the
// current one if it was already stopped or did not go away within a second.
func (runner *Runner) Stop(id string) (*StopResult, error) {
	pe, err := runner.getProcess(id)
	if err != nil {
		return nil, err
	}
	command := pe.command.Clone()
	res := StopResult{Command: &command}

	if st, exited := pe.process.Poll(); exited {
		res.Status = &st
		return &res, nil
	}

	runner.logger.Info("stopping process", "id", id, "pid", pe.process.PID())
	if err := pe.process.Kill(); err != nil {
		return nil, fmt.Errorf("stopping %s: %w", id, err)
	}

	select {
	case <-pe.process.Done():
	case <-time.After(stopWait):
	}

	st, _ := pe.process.Poll()
	res.Status = &st

	return &res, nil
}
