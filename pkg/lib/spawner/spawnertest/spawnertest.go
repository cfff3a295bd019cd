// Package spawnertest provides a scripted Spawner that never touches the
// operating system.
package spawnertest

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/spawner"
)

// Forever is a Lifetime for processes that run until killed.
const Forever time.Duration = -1

// Behavior scripts one spawned process.
type Behavior struct {
	Stdout string
	Stderr string
	// ExitCode is reported when the process exits on its own.
	ExitCode int
	// Lifetime is how long the process runs. Zero exits right away;
	// Forever runs until Kill.
	Lifetime time.Duration
	// IgnoreSignals makes Signal a no-op, like a child that traps SIGTERM.
	IgnoreSignals bool
	// SpawnErr makes Spawn fail. It is wrapped in lib.ErrSpawnFailed.
	SpawnErr error
}

// Spawner hands out scripted processes. attempt counts from 0 and includes
// failed spawns.
type Spawner struct {
	script func(attempt int) Behavior

	mu        sync.Mutex
	attempts  int
	commands  []lib.Command
	processes []*Process
	nextPID   int
}

var _ spawner.Spawner = (*Spawner)(nil)

// New returns a spawner that gives every process the same behaviour.
func New(b Behavior) *Spawner {
	return NewScripted(func(int) Behavior { return b })
}

func NewScripted(script func(attempt int) Behavior) *Spawner {
	return &Spawner{script: script, nextPID: 1000}
}

func (s *Spawner) Spawn(id string, command lib.Command, stdout, stderr io.Writer) (spawner.Process, error) {
	s.mu.Lock()
	attempt := s.attempts
	s.attempts++
	s.commands = append(s.commands, command.Clone())
	b := s.script(attempt)
	if b.SpawnErr != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", lib.ErrSpawnFailed, b.SpawnErr)
	}
	s.nextPID++
	p := &Process{
		id:       id,
		pid:      s.nextPID,
		behavior: b,
		stdout:   stdout,
		stderr:   stderr,
		status:   lib.ProcessStatus{State: lib.ProcessStateRunning, StartTime: time.Now()},
		done:     make(chan struct{}),
	}
	s.processes = append(s.processes, p)
	s.mu.Unlock()

	p.writeOutput()
	switch {
	case b.Lifetime == 0:
		p.exit(b.ExitCode)
	case b.Lifetime > 0:
		p.timer = time.AfterFunc(b.Lifetime, func() { p.exit(b.ExitCode) })
	}
	return p, nil
}

// Attempts returns the number of Spawn calls, failed ones included.
func (s *Spawner) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Spawned returns the processes that started, in spawn order.
func (s *Spawner) Spawned() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Process(nil), s.processes...)
}

// Commands returns every command passed to Spawn.
func (s *Spawner) Commands() []lib.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]lib.Command(nil), s.commands...)
}

// Process is a scripted spawner.Process.
type Process struct {
	id       string
	pid      int
	behavior Behavior
	stdout   io.Writer
	stderr   io.Writer
	timer    *time.Timer

	mu      sync.Mutex
	status  lib.ProcessStatus
	signals []os.Signal
	done    chan struct{}
	once    sync.Once
}

func (p *Process) writeOutput() {
	if p.behavior.Stdout != "" && p.stdout != nil {
		_, _ = io.WriteString(p.stdout, p.behavior.Stdout)
	}
	if p.behavior.Stderr != "" && p.stderr != nil {
		_, _ = io.WriteString(p.stderr, p.behavior.Stderr)
	}
}

// Exit makes a running process exit with code, as if it returned on its own.
func (p *Process) Exit(code int) { p.exit(code) }

func (p *Process) exit(code int) {
	p.finish(func(st *lib.ProcessStatus) { st.ExitCode = &code })
}

func (p *Process) finish(set func(*lib.ProcessStatus)) {
	p.once.Do(func() {
		if p.timer != nil {
			p.timer.Stop()
		}
		now := time.Now()
		p.mu.Lock()
		p.status.State = lib.ProcessStateStopped
		p.status.EndTime = &now
		set(&p.status)
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *Process) ID() string { return p.id }

func (p *Process) PID() int { return p.pid }

func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) Poll() (lib.ProcessStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status.Copy(), p.status.Exited()
}

func (p *Process) Wait() lib.ProcessStatus {
	<-p.done
	st, _ := p.Poll()
	return st
}

func (p *Process) Kill() error {
	p.finish(func(st *lib.ProcessStatus) {
		st.Terminated = true
		st.Signal = "killed"
	})
	return nil
}

func (p *Process) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	if p.behavior.IgnoreSignals {
		return nil
	}
	p.finish(func(st *lib.ProcessStatus) {
		st.Terminated = true
		st.Signal = sig.String()
	})
	return nil
}

// Signals returns the signals delivered through Signal.
func (p *Process) Signals() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}

// Killed reports whether the process ended by Kill or Signal.
func (p *Process) Killed() bool {
	st, _ := p.Poll()
	return st.Terminated
}
