package lib

import (
	"context"
	"time"
)

// ProcessInfo is what an Inspector reports about one OS process.
type ProcessInfo struct {
	PID             int
	Name            string
	PriorityClass   string
	StartTime       time.Time
	WorkingSetBytes uint64
	Responding      bool
}

// Inspector is the process inspection service. It is provided by the
// embedding application; the core only uses it for display and never for
// control decisions. Names are matched exactly, never as patterns.
type Inspector interface {
	ProcessesByName(ctx context.Context, name string) ([]ProcessInfo, error)
}
