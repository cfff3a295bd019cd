// Package watchdog keeps one command alive. It polls the supervised process
// on a fixed interval and restarts it when it exits, up to a restart budget.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/clock"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/runner"
)

var (
	ErrInvalidConfig  = errors.New("invalid watchdog config")
	ErrAlreadyStarted = errors.New("watchdog already started")
	ErrStopped        = errors.New("watchdog stopped")
)

// State of the supervision loop. The zero value is Stopped.
type State int

const (
	StateStopped State = iota
	StateRunning
	StateRestarting
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateRestarting:
		return "restarting"
	default:
		return "stopped"
	}
}

// Reason explains why a watchdog is Stopped.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonStopRequested
	ReasonRestartBudgetExhausted
	ReasonSpawnFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonStopRequested:
		return "stop requested"
	case ReasonRestartBudgetExhausted:
		return "restart budget exhausted"
	case ReasonSpawnFailed:
		return "spawn failed"
	default:
		return "none"
	}
}

// Starter is the part of *runner.Runner the watchdog drives.
type Starter interface {
	Start(command lib.Command) (*runner.StartResult, error)
	Release(id string) error
}

// Config describes what to supervise and how.
type Config struct {
	Command lib.Command
	// CheckInterval is the polling period. Required.
	CheckInterval time.Duration
	// MaxRestarts is the restart budget. Zero never restarts.
	MaxRestarts int
	// RestartDelay is waited between an observed exit and the respawn.
	RestartDelay time.Duration
	// TerminateOnStop kills the child when the watchdog is stopped. Without
	// it the child is left running.
	TerminateOnStop bool
	// StopGrace, when positive, sends SIGTERM first and kills only if the
	// child is still alive after the grace period.
	StopGrace time.Duration
}

func (c Config) validate() error {
	switch {
	case c.Command.Command == "":
		return fmt.Errorf("%w: empty command", ErrInvalidConfig)
	case c.CheckInterval <= 0:
		return fmt.Errorf("%w: check interval must be positive, got %s", ErrInvalidConfig, c.CheckInterval)
	case c.MaxRestarts < 0:
		return fmt.Errorf("%w: max restarts must not be negative, got %d", ErrInvalidConfig, c.MaxRestarts)
	case c.RestartDelay < 0 || c.StopGrace < 0:
		return fmt.Errorf("%w: negative delay", ErrInvalidConfig)
	}
	return nil
}

// Exit records one observed end of the supervised process, or a failed
// respawn when SpawnError is set.
type Exit struct {
	PID        int
	Status     lib.ProcessStatus
	SpawnError error
	At         time.Time
}

// Status is a point-in-time snapshot. It shares nothing with the watchdog.
type Status struct {
	State    State
	Reason   Reason
	Restarts int
	// Spawns counts successful spawns, the initial one included.
	Spawns int
	// PID of the current child, 0 when there is none.
	PID int
	// ProcessID is the runner identifier of the current child.
	ProcessID string
	Exits     []Exit
}

type Option func(*Watchdog)

func WithClock(c clock.Clock) Option {
	return func(wd *Watchdog) { wd.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(wd *Watchdog) { wd.logger = logger }
}

// WithInspector describes each spawned child in the logs.
func WithInspector(inspector lib.Inspector) Option {
	return func(wd *Watchdog) { wd.inspector = inspector }
}

// Watchdog supervises a single command. Only the loop goroutine changes
// its state; mu guards the snapshot read by Status.
type Watchdog struct {
	starter   Starter
	cfg       Config
	clock     clock.Clock
	logger    *slog.Logger
	inspector lib.Inspector

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	started bool
	status  Status
	current *runner.StartResult
}

// New validates cfg and returns a stopped watchdog.
func New(starter Starter, cfg Config, opts ...Option) (*Watchdog, error) {
	if starter == nil {
		return nil, fmt.Errorf("%w: nil runner", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Command = cfg.Command.Clone()

	wd := &Watchdog{
		starter: starter,
		cfg:     cfg,
		clock:   clock.Real(),
		logger:  slog.New(slog.DiscardHandler),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(wd)
	}
	return wd, nil
}

// Start spawns the command and launches the supervision loop. It does not
// wait for the child. If the first spawn fails the error wraps
// lib.ErrSpawnFailed and the watchdog stays Stopped.
func (wd *Watchdog) Start(ctx context.Context) error {
	wd.mu.Lock()
	if wd.started {
		wd.mu.Unlock()
		return ErrAlreadyStarted
	}
	wd.started = true
	wd.mu.Unlock()

	select {
	case <-wd.stop:
		wd.finish(ReasonStopRequested)
		return ErrStopped
	default:
	}

	res, err := wd.starter.Start(wd.cfg.Command)
	if err != nil {
		wd.logger.Warn("initial spawn failed", "command", wd.cfg.Command.String(), "error", err)
		wd.finish(ReasonSpawnFailed)
		return fmt.Errorf("starting %q: %w", wd.cfg.Command.String(), err)
	}

	wd.mu.Lock()
	wd.current = res
	wd.status.State = StateRunning
	wd.status.Spawns = 1
	wd.status.PID = res.PID
	wd.status.ProcessID = res.ID
	wd.mu.Unlock()

	wd.logger.Info("watchdog started", "command", wd.cfg.Command.String(), "pid", res.PID,
		"interval", wd.cfg.CheckInterval, "max_restarts", wd.cfg.MaxRestarts)
	wd.describe(ctx, res.PID)

	go wd.loop(ctx)
	return nil
}

// Stop asks the loop to stop. It returns immediately and is safe to call
// more than once.
func (wd *Watchdog) Stop() {
	wd.stopOnce.Do(func() { close(wd.stop) })
}

// Done is closed once the watchdog has reached Stopped for good.
func (wd *Watchdog) Done() <-chan struct{} { return wd.done }

// Wait blocks until Done or ctx ends and returns the latest snapshot.
func (wd *Watchdog) Wait(ctx context.Context) (Status, error) {
	select {
	case <-wd.done:
		return wd.Status(), nil
	case <-ctx.Done():
		return wd.Status(), ctx.Err()
	}
}

func (wd *Watchdog) Status() Status {
	wd.mu.Lock()
	defer wd.mu.Unlock()
	st := wd.status
	st.Exits = make([]Exit, len(wd.status.Exits))
	for i, e := range wd.status.Exits {
		e.Status = e.Status.Copy()
		st.Exits[i] = e
	}
	return st
}

func (wd *Watchdog) finish(reason Reason) {
	wd.mu.Lock()
	wd.status.State = StateStopped
	wd.status.Reason = reason
	wd.status.PID = 0
	wd.status.ProcessID = ""
	wd.mu.Unlock()
	close(wd.done)
}

func (wd *Watchdog) describe(ctx context.Context, pid int) {
	if wd.inspector == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	infos, err := wd.inspector.ProcessesByName(ctx, processName(wd.cfg.Command.Command))
	if err != nil {
		wd.logger.Debug("process inspection failed", "pid", pid, "error", err)
		return
	}
	for _, info := range infos {
		if info.PID != pid {
			continue
		}
		wd.logger.Info("supervised process", "pid", info.PID, "name", info.Name,
			"priority", info.PriorityClass, "started", info.StartTime,
			"working_set", info.WorkingSetBytes, "responding", info.Responding)
	}
}
