package spawner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
)

const defaultWaitDelay = time.Second

// OS spawns real processes. Each child gets its own process group, and a
// cgroup when running as root on Linux, so Kill reaches grandchildren too.
type OS struct {
	// BaseDir, when set, gives every command without an explicit Dir a
	// fresh working directory BaseDir/<id>. The directory is not removed.
	BaseDir string
	// WaitDelay bounds how long Wait waits for output pipes held open by
	// grandchildren after the child exits. Zero means one second.
	WaitDelay time.Duration
	Logger    *slog.Logger
}

// NewOS returns an OS spawner that places working directories under baseDir.
func NewOS(baseDir string) *OS {
	return &OS{BaseDir: baseDir}
}

func (s *OS) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (s *OS) Spawn(id string, command lib.Command, stdout, stderr io.Writer) (Process, error) {
	if command.Command == "" {
		return nil, fmt.Errorf("%w: command is required", lib.ErrSpawnFailed)
	}
	log := s.logger().With("id", id, "command", command.Command)

	cmd := exec.Command(command.Command, command.Args...)
	cmd.Dir = command.Dir
	if cmd.Dir == "" && s.BaseDir != "" {
		workDir := filepath.Join(s.BaseDir, id)
		if err := os.MkdirAll(workDir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: %w", lib.ErrSpawnFailed, err)
		}
		cmd.Dir = workDir
	}
	if len(command.Env) > 0 {
		cmd.Env = append(os.Environ(), command.Env...)
	}
	// nil Stdin reads from /dev/null
	if command.Stdin != "" {
		cmd.Stdin = strings.NewReader(command.Stdin)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = s.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	attr := sysProcAttr(id, log)
	cmd.SysProcAttr = attr.raw

	log.Debug("starting process")
	err := cmd.Start()
	attr.closeFile()
	if err != nil {
		if attr.cgroup {
			_ = cleanupCgroup(id)
		}
		log.Debug("failed to start process", "error", err)
		return nil, fmt.Errorf("%w: %w", lib.ErrSpawnFailed, err)
	}

	process := &osProcess{
		id:     id,
		pid:    cmd.Process.Pid,
		cgroup: attr.cgroup,
		status: lib.ProcessStatus{State: lib.ProcessStateRunning, StartTime: time.Now()},
		done:   make(chan struct{}),
	}

	if command.Priority != 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, process.pid, command.Priority); err != nil {
			log.Warn("failed to set priority", "priority", command.Priority, "error", err)
		}
	}

	go func() {
		err := cmd.Wait()
		status := exitStatus(cmd.ProcessState)
		log.Debug("process finished", "error", err, "exit_code", status.ExitCode, "signal", status.Signal)
		process.finish(status)
		if attr.cgroup {
			_ = cleanupCgroup(id)
		}
	}()

	return process, nil
}

func exitStatus(state *os.ProcessState) lib.ProcessStatus {
	now := time.Now()
	status := lib.ProcessStatus{State: lib.ProcessStateStopped, EndTime: &now}
	if state == nil {
		// never waited successfully; nothing observed
		status.Terminated = true
		return status
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Terminated = true
		status.Signal = ws.Signal().String()
		return status
	}
	code := state.ExitCode()
	status.ExitCode = &code
	return status
}

type osProcess struct {
	id     string
	pid    int
	cgroup bool

	mu     sync.RWMutex
	status lib.ProcessStatus
	done   chan struct{}
}

func (p *osProcess) ID() string { return p.id }

func (p *osProcess) PID() int { return p.pid }

func (p *osProcess) Done() <-chan struct{} { return p.done }

func (p *osProcess) finish(final lib.ProcessStatus) {
	p.mu.Lock()
	final.StartTime = p.status.StartTime
	p.status = final
	p.mu.Unlock()
	close(p.done)
}

func (p *osProcess) Poll() (lib.ProcessStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status.Copy(), p.status.Exited()
}

func (p *osProcess) Wait() lib.ProcessStatus {
	<-p.done
	status, _ := p.Poll()
	return status
}

func (p *osProcess) Kill() error {
	if _, exited := p.Poll(); exited {
		return nil
	}
	if p.cgroup {
		if killed, err := killCgroup(p.id); killed {
			return nil
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("killing cgroup of %s: %w", p.id, err)
		}
	}
	return p.signalGroup(unix.SIGKILL)
}

func (p *osProcess) Signal(sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unsupported signal %v", sig)
	}
	if _, exited := p.Poll(); exited {
		return nil
	}
	return p.signalGroup(s)
}

// signalGroup signals the whole process group (negative PID).
func (p *osProcess) signalGroup(sig syscall.Signal) error {
	err := unix.Kill(-p.pid, sig)
	if errors.Is(err, unix.ESRCH) {
		// already gone, the waiter will observe it
		return nil
	}
	return err
}
