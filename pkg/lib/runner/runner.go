// Package runner launches external commands through a spawner.Spawner and
// captures their output. Run blocks until the command finishes; Start
// registers a background process that can later be inspected, streamed,
// stopped and released by ID.
package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/output_storage"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/spawner"
)

// ErrStillRunning is returned by Release for a process that has not exited.
var ErrStillRunning = errors.New("process is still running")

// Runner manages processes started by this library.
type Runner struct {
	spawner spawner.Spawner
	logger  *slog.Logger

	mu        sync.RWMutex
	processes map[string]*processEntry
}

type processEntry struct {
	id      string
	command lib.Command
	process spawner.Process
	// output buffer (full replay)
	stdout *output_storage.OutputStorage
	stderr *output_storage.OutputStorage
}

type config struct {
	spawner     spawner.Spawner
	logger      *slog.Logger
	workDirRoot string
}

// Option configures a Runner.
type Option func(*config)

// WithSpawner replaces the OS spawner, typically with spawnertest.
func WithSpawner(s spawner.Spawner) Option {
	return func(c *config) { c.spawner = s }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithWorkDirRoot gives each command without its own Dir a fresh working
// directory under root. Without it children inherit the caller's directory.
// Ignored when WithSpawner is used.
func WithWorkDirRoot(root string) Option {
	return func(c *config) { c.workDirRoot = root }
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) (*Runner, error) {
	cfg := config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.spawner == nil {
		if cfg.workDirRoot != "" {
			if err := os.MkdirAll(cfg.workDirRoot, 0o700); err != nil {
				return nil, fmt.Errorf("creating work dir root: %w", err)
			}
		}
		cfg.spawner = &spawner.OS{BaseDir: cfg.workDirRoot, Logger: cfg.logger}
	}

	return &Runner{
		spawner:   cfg.spawner,
		logger:    cfg.logger,
		processes: make(map[string]*processEntry),
	}, nil
}

// spawn starts command with captured output. The output storages are
// stopped once the process has been reaped.
func (runner *Runner) spawn(id string, command lib.Command) (*processEntry, error) {
	stdout := output_storage.New()
	stderr := output_storage.New()

	process, err := runner.spawner.Spawn(id, command, stdout, stderr)
	if err != nil {
		stdout.Stop()
		stderr.Stop()
		runner.logger.Info("spawn failed", "id", id, "command", command.String(), "error", err)
		return nil, err
	}
	runner.logger.Debug("spawned", "id", id, "pid", process.PID(), "command", command.String())

	go func() {
		<-process.Done()
		stdout.Stop()
		stderr.Stop()
	}()

	return &processEntry{
		id:      id,
		command: command.Clone(),
		process: process,
		stdout:  stdout,
		stderr:  stderr,
	}, nil
}
