package watchdog

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/clock"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/runner"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/spawner/spawnertest"
)

const interval = 5 * time.Second

func newRunner(t *testing.T, s *spawnertest.Spawner) *runner.Runner {
	t.Helper()
	r, err := runner.NewRunner(runner.WithSpawner(s))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return r
}

func newFakeClock() *clock.Fake {
	return clock.NewFake(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
}

func waitDone(t *testing.T, wd *Watchdog) Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := wd.Wait(ctx)
	if err != nil {
		t.Fatalf("watchdog did not stop: %v (state %s)", err, st.State)
	}
	return st
}

func TestNewValidatesConfig(t *testing.T) {
	r := newRunner(t, spawnertest.New(spawnertest.Behavior{}))
	cmd := lib.Command{Command: "sleep"}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty command", Config{CheckInterval: interval}},
		{"zero interval", Config{Command: cmd}},
		{"negative interval", Config{Command: cmd, CheckInterval: -time.Second}},
		{"negative budget", Config{Command: cmd, CheckInterval: interval, MaxRestarts: -1}},
		{"negative delay", Config{Command: cmd, CheckInterval: interval, RestartDelay: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(r, tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if _, err := New(nil, Config{Command: cmd, CheckInterval: interval}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for nil runner, got %v", err)
	}
}

func TestRestartBudgetExhausted(t *testing.T) {
	g := NewWithT(t)

	fake := spawnertest.New(spawnertest.Behavior{ExitCode: 1})
	r := newRunner(t, fake)
	fc := newFakeClock()

	wd, err := New(r, Config{Command: lib.Command{Command: "false"}, CheckInterval: interval, MaxRestarts: 3}, WithClock(fc))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())

	g.Eventually(func() State {
		fc.Advance(interval)
		return wd.Status().State
	}).Should(Equal(StateStopped))

	st := waitDone(t, wd)
	g.Expect(st.Reason).To(Equal(ReasonRestartBudgetExhausted))
	g.Expect(st.Restarts).To(Equal(3))
	g.Expect(st.Spawns).To(Equal(4))
	g.Expect(fake.Attempts()).To(Equal(4))
	g.Expect(st.Exits).To(HaveLen(4))
	for _, exit := range st.Exits {
		g.Expect(exit.Status.ExitCode).To(HaveValue(Equal(1)))
	}
	g.Expect(r.Len()).To(BeZero())
}

func TestZeroBudgetNeverRestarts(t *testing.T) {
	g := NewWithT(t)

	fake := spawnertest.New(spawnertest.Behavior{})
	fc := newFakeClock()
	wd, err := New(newRunner(t, fake), Config{Command: lib.Command{Command: "true"}, CheckInterval: interval}, WithClock(fc))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())

	g.Eventually(func() State {
		fc.Advance(interval)
		return wd.Status().State
	}).Should(Equal(StateStopped))

	st := waitDone(t, wd)
	g.Expect(st.Reason).To(Equal(ReasonRestartBudgetExhausted))
	g.Expect(st.Spawns).To(Equal(1))
	g.Expect(fake.Attempts()).To(Equal(1))
}

func TestStopBeforeExitLeavesChildRunning(t *testing.T) {
	g := NewWithT(t)

	fake := spawnertest.New(spawnertest.Behavior{Lifetime: spawnertest.Forever})
	r := newRunner(t, fake)
	// real clock with a long interval: the stop must not wait for a tick
	wd, err := New(r, Config{Command: lib.Command{Command: "sleep"}, CheckInterval: time.Hour, MaxRestarts: 3})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())
	g.Expect(wd.Status().State).To(Equal(StateRunning))
	res, err := r.Status(wd.Status().ProcessID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.PID).To(Equal(wd.Status().PID))

	started := time.Now()
	wd.Stop()
	wd.Stop()
	st := waitDone(t, wd)

	g.Expect(time.Since(started)).To(BeNumerically("<", time.Second))
	g.Expect(st.State).To(Equal(StateStopped))
	g.Expect(st.Reason).To(Equal(ReasonStopRequested))
	g.Expect(st.Restarts).To(BeZero())
	g.Expect(st.Spawns).To(Equal(1))
	g.Expect(fake.Spawned()[0].Killed()).To(BeFalse())
	g.Expect(r.Len()).To(Equal(1))
}

func TestTerminateOnStopKillsChild(t *testing.T) {
	g := NewWithT(t)

	fake := spawnertest.New(spawnertest.Behavior{Lifetime: spawnertest.Forever})
	r := newRunner(t, fake)
	wd, err := New(r, Config{
		Command:         lib.Command{Command: "sleep"},
		CheckInterval:   interval,
		TerminateOnStop: true,
	}, WithClock(newFakeClock()))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())

	wd.Stop()
	st := waitDone(t, wd)

	proc := fake.Spawned()[0]
	g.Expect(st.Reason).To(Equal(ReasonStopRequested))
	g.Expect(proc.Killed()).To(BeTrue())
	g.Expect(proc.Signals()).To(BeEmpty())
	g.Expect(r.Len()).To(BeZero())
}

func TestGracefulStop(t *testing.T) {
	g := NewWithT(t)

	fake := spawnertest.New(spawnertest.Behavior{Lifetime: spawnertest.Forever})
	wd, err := New(newRunner(t, fake), Config{
		Command:         lib.Command{Command: "sleep"},
		CheckInterval:   interval,
		TerminateOnStop: true,
		StopGrace:       10 * time.Second,
	}, WithClock(newFakeClock()))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())

	wd.Stop()
	waitDone(t, wd)

	proc := fake.Spawned()[0]
	g.Expect(proc.Signals()).To(Equal([]os.Signal{syscall.SIGTERM}))
	st, _ := proc.Poll()
	g.Expect(st.Signal).To(Equal(syscall.SIGTERM.String()))
	g.Expect(st.ExitCode).To(BeNil())
}

func TestGracefulStopEscalatesToKill(t *testing.T) {
	g := NewWithT(t)

	fake := spawnertest.New(spawnertest.Behavior{Lifetime: spawnertest.Forever, IgnoreSignals: true})
	fc := newFakeClock()
	wd, err := New(newRunner(t, fake), Config{
		Command:         lib.Command{Command: "stubborn"},
		CheckInterval:   interval,
		TerminateOnStop: true,
		StopGrace:       10 * time.Second,
	}, WithClock(fc))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())

	wd.Stop()
	g.Eventually(func() []os.Signal { return fake.Spawned()[0].Signals() }).Should(HaveLen(1))
	g.Consistently(wd.Done(), 50*time.Millisecond).ShouldNot(BeClosed())

	g.Eventually(func() bool {
		fc.Advance(10 * time.Second)
		select {
		case <-wd.Done():
			return true
		default:
			return false
		}
	}).Should(BeTrue())

	st, _ := fake.Spawned()[0].Poll()
	g.Expect(st.Signal).To(Equal("killed"))
}

func TestStopInterruptsRestartDelay(t *testing.T) {
	g := NewWithT(t)

	fake := spawnertest.New(spawnertest.Behavior{ExitCode: 2})
	fc := newFakeClock()
	wd, err := New(newRunner(t, fake), Config{
		Command:       lib.Command{Command: "false"},
		CheckInterval: interval,
		MaxRestarts:   3,
		RestartDelay:  time.Hour,
	}, WithClock(fc))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())

	g.Eventually(func() State {
		fc.Advance(interval)
		return wd.Status().State
	}).Should(Equal(StateRestarting))

	wd.Stop()
	st := waitDone(t, wd)
	g.Expect(st.Reason).To(Equal(ReasonStopRequested))
	g.Expect(st.Spawns).To(Equal(1))
	g.Expect(st.Restarts).To(Equal(1))
	g.Expect(fake.Attempts()).To(Equal(1))
}

func TestRestartDelayElapses(t *testing.T) {
	g := NewWithT(t)

	fake := spawnertest.NewScripted(func(attempt int) spawnertest.Behavior {
		if attempt == 0 {
			return spawnertest.Behavior{}
		}
		return spawnertest.Behavior{Lifetime: spawnertest.Forever}
	})
	fc := newFakeClock()
	wd, err := New(newRunner(t, fake), Config{
		Command:       lib.Command{Command: "flaky"},
		CheckInterval: interval,
		MaxRestarts:   1,
		RestartDelay:  time.Minute,
	}, WithClock(fc))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())

	g.Eventually(func() int {
		fc.Advance(interval)
		return wd.Status().Spawns
	}).Should(Equal(2))
	g.Expect(wd.Status().State).To(Equal(StateRunning))
	g.Expect(fc.Now().Sub(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))).To(BeNumerically(">=", time.Minute))

	wd.Stop()
	waitDone(t, wd)
}

func TestRespawnFailureCountsAsRestart(t *testing.T) {
	g := NewWithT(t)

	fake := spawnertest.NewScripted(func(attempt int) spawnertest.Behavior {
		switch attempt {
		case 0:
			return spawnertest.Behavior{ExitCode: 1}
		case 1:
			return spawnertest.Behavior{SpawnErr: errors.New("resource busy")}
		default:
			return spawnertest.Behavior{Lifetime: spawnertest.Forever}
		}
	})
	fc := newFakeClock()
	wd, err := New(newRunner(t, fake), Config{Command: lib.Command{Command: "flaky"}, CheckInterval: interval, MaxRestarts: 3}, WithClock(fc))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())

	g.Eventually(func() int {
		fc.Advance(interval)
		return wd.Status().Spawns
	}).Should(Equal(2))

	st := wd.Status()
	g.Expect(st.State).To(Equal(StateRunning))
	g.Expect(st.Restarts).To(Equal(2))
	g.Expect(fake.Attempts()).To(Equal(3))
	g.Expect(st.Exits).To(HaveLen(2))
	g.Expect(st.Exits[1].SpawnError).To(MatchError(lib.ErrSpawnFailed))
	g.Expect(st.PID).NotTo(BeZero())

	wd.Stop()
	waitDone(t, wd)
}

func TestInitialSpawnFailure(t *testing.T) {
	g := NewWithT(t)

	fake := spawnertest.New(spawnertest.Behavior{SpawnErr: errors.New("no such file")})
	wd, err := New(newRunner(t, fake), Config{Command: lib.Command{Command: "missing"}, CheckInterval: interval, MaxRestarts: 3})
	g.Expect(err).NotTo(HaveOccurred())

	err = wd.Start(context.Background())
	g.Expect(err).To(MatchError(lib.ErrSpawnFailed))
	g.Expect(wd.Done()).To(BeClosed())

	st := wd.Status()
	g.Expect(st.State).To(Equal(StateStopped))
	g.Expect(st.Reason).To(Equal(ReasonSpawnFailed))
	g.Expect(st.Spawns).To(BeZero())
	g.Expect(fake.Attempts()).To(Equal(1))
}

func TestStartTwiceAndAfterStop(t *testing.T) {
	g := NewWithT(t)

	fake := spawnertest.New(spawnertest.Behavior{Lifetime: spawnertest.Forever})
	cfg := Config{Command: lib.Command{Command: "sleep"}, CheckInterval: interval}

	wd, err := New(newRunner(t, fake), cfg, WithClock(newFakeClock()))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())
	g.Expect(wd.Start(context.Background())).To(MatchError(ErrAlreadyStarted))
	wd.Stop()
	waitDone(t, wd)

	early, err := New(newRunner(t, fake), cfg)
	g.Expect(err).NotTo(HaveOccurred())
	early.Stop()
	g.Expect(early.Start(context.Background())).To(MatchError(ErrStopped))
	g.Expect(early.Status().Reason).To(Equal(ReasonStopRequested))
}

func TestContextCancellationStops(t *testing.T) {
	g := NewWithT(t)

	fake := spawnertest.New(spawnertest.Behavior{Lifetime: spawnertest.Forever})
	wd, err := New(newRunner(t, fake), Config{Command: lib.Command{Command: "sleep"}, CheckInterval: interval, TerminateOnStop: true},
		WithClock(newFakeClock()))
	g.Expect(err).NotTo(HaveOccurred())

	ctx, cancel := context.WithCancel(context.Background())
	g.Expect(wd.Start(ctx)).To(Succeed())
	cancel()

	st := waitDone(t, wd)
	g.Expect(st.Reason).To(Equal(ReasonStopRequested))
	g.Expect(fake.Spawned()[0].Killed()).To(BeTrue())
}

func TestWaitHonoursContext(t *testing.T) {
	g := NewWithT(t)

	wd, err := New(newRunner(t, spawnertest.New(spawnertest.Behavior{Lifetime: spawnertest.Forever})),
		Config{Command: lib.Command{Command: "sleep"}, CheckInterval: interval}, WithClock(newFakeClock()))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())
	defer wd.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	st, err := wd.Wait(ctx)
	g.Expect(err).To(MatchError(context.DeadlineExceeded))
	g.Expect(st.State).To(Equal(StateRunning))
}

type recordingInspector struct {
	mu    sync.Mutex
	names []string
}

func (i *recordingInspector) ProcessesByName(_ context.Context, name string) ([]lib.ProcessInfo, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.names = append(i.names, name)
	return []lib.ProcessInfo{{PID: 1001, Name: name, Responding: true}}, nil
}

func (i *recordingInspector) Names() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.names...)
}

func TestInspectorConsultedAfterEachSpawn(t *testing.T) {
	g := NewWithT(t)

	inspector := &recordingInspector{}
	fake := spawnertest.New(spawnertest.Behavior{})
	fc := newFakeClock()
	wd, err := New(newRunner(t, fake), Config{Command: lib.Command{Command: "/usr/bin/python3.12"}, CheckInterval: interval, MaxRestarts: 1},
		WithClock(fc), WithInspector(inspector))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())

	g.Eventually(func() State {
		fc.Advance(interval)
		return wd.Status().State
	}).Should(Equal(StateStopped))

	g.Expect(inspector.Names()).To(Equal([]string{"python3.12", "python3.12"}))
}

func TestRestartsRealProcess(t *testing.T) {
	g := NewWithT(t)

	r, err := runner.NewRunner()
	g.Expect(err).NotTo(HaveOccurred())

	wd, err := New(r, Config{
		Command:       lib.Command{Command: "/bin/sh", Args: []string{"-c", "exit 3"}},
		CheckInterval: 20 * time.Millisecond,
		MaxRestarts:   2,
	})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(wd.Start(context.Background())).To(Succeed())

	g.Eventually(wd.Done(), 5*time.Second).Should(BeClosed())
	st := wd.Status()
	g.Expect(st.Reason).To(Equal(ReasonRestartBudgetExhausted))
	g.Expect(st.Spawns).To(Equal(3))
	for _, exit := range st.Exits {
		g.Expect(exit.Status.ExitCode).To(HaveValue(Equal(3)))
		g.Expect(exit.Status.Terminated).To(BeFalse())
	}
}
