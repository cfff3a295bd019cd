package lib

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSpawnFailed reports an executable that could not be started
	// (missing, not executable, bad working directory). It is never retried
	// automatically by the runner.
	ErrSpawnFailed = errors.New("spawn failed")
	// ErrTimedOut reports a child that was killed because it outlived its timeout.
	ErrTimedOut = errors.New("timed out")
	// ErrTerminated reports a child killed before it exited on its own.
	ErrTerminated = errors.New("terminated")
	// ErrProcessNotFound is returned for unknown process identifiers.
	// It matches os.ErrNotExist.
	ErrProcessNotFound = fmt.Errorf("process not found: %w", os.ErrNotExist)
)
