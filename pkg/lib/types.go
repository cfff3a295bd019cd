package lib

import (
	"strings"
	"time"
)

// ProcessState mirrors high-level states of a spawned process.
type ProcessState int

const (
	ProcessStateUnspecified ProcessState = iota
	ProcessStateRunning
	ProcessStateStopped
)

func (s ProcessState) String() string {
	switch s {
	case ProcessStateRunning:
		return "running"
	case ProcessStateStopped:
		return "stopped"
	default:
		return "unspecified"
	}
}

// Command captures command metadata used to start a process.
type Command struct {
	Command string
	Args    []string
	// Env entries (KEY=VALUE) are appended to the parent environment.
	Env []string
	// Dir is the working directory. Empty means the spawner's default.
	Dir string
	// Stdin is written to the child's standard input, which is then closed.
	Stdin string
	// Priority is a nice value applied right after spawn. 0 keeps the default.
	Priority int
}

// Clone returns a deep copy, so results never alias caller slices.
func (c Command) Clone() Command {
	c.Args = append([]string(nil), c.Args...)
	c.Env = append([]string(nil), c.Env...)
	return c
}

// String renders the command line as typed by a user.
func (c Command) String() string {
	return strings.TrimSpace(strings.Join(append([]string{c.Command}, c.Args...), " "))
}

// ProcessStatus captures runtime state and timestamps.
//
// ExitCode is set only when the process was observed exiting on its own.
// A process killed by a signal reports Terminated with no exit code.
type ProcessStatus struct {
	State      ProcessState
	ExitCode   *int
	Terminated bool
	Signal     string
	StartTime  time.Time
	EndTime    *time.Time
}

// Exited reports whether the process is reaped.
func (st ProcessStatus) Exited() bool {
	return st.State == ProcessStateStopped
}

// Copy returns a status that shares no pointers with st.
func (st ProcessStatus) Copy() ProcessStatus {
	if st.ExitCode != nil {
		code := *st.ExitCode
		st.ExitCode = &code
	}
	if st.EndTime != nil {
		end := *st.EndTime
		st.EndTime = &end
	}
	return st
}
