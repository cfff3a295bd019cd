// Package spawner is the boundary between the runner and the operating
// system. Runner and watchdog only see the interfaces below, so tests can
// substitute scripted processes (see spawnertest).
package spawner

import (
	"io"
	"os"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
)

// Spawner starts processes. Spawn must not wait for the process to exit.
// Errors wrap lib.ErrSpawnFailed.
type Spawner interface {
	Spawn(id string, command lib.Command, stdout, stderr io.Writer) (Process, error)
}

// Process is a handle to a spawned process. It is released when the
// process has been reaped; Kill and Signal on a reaped process are no-ops.
type Process interface {
	ID() string
	PID() int
	// Poll reports the current status without blocking. The boolean is true
	// once the process has been reaped.
	Poll() (lib.ProcessStatus, bool)
	// Wait blocks until the process has been reaped and all of its output
	// has been written.
	Wait() lib.ProcessStatus
	// Done is closed when Wait would no longer block.
	Done() <-chan struct{}
	// Kill forcibly terminates the process and everything it started.
	Kill() error
	// Signal delivers sig to the process group, e.g. for a graceful stop.
	Signal(sig os.Signal) error
}
