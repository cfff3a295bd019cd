// Package deadlock reproduces the classic lock-ordering deadlock between two
// workers, and the ordered variant that avoids it. Locks are channel based so
// a blocked acquisition can be abandoned through its context.
package deadlock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Lock is a mutex whose Acquire can be cancelled.
type Lock struct {
	name string
	ch   chan struct{}
}

func NewLock(name string) *Lock {
	return &Lock{name: name, ch: make(chan struct{}, 1)}
}

func (l *Lock) Name() string { return l.name }

// Acquire blocks until the lock is free or ctx ends.
func (l *Lock) Acquire(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release panics if the lock is not held.
func (l *Lock) Release() {
	select {
	case <-l.ch:
	default:
		panic("deadlock: release of unlocked " + l.name)
	}
}

// Progress is what one worker is doing right now.
type Progress struct {
	Worker string
	// Holding lists the locks held right now, in acquisition order.
	Holding []string
	// Waiting is the lock the worker is blocked on, if any.
	Waiting  string
	Finished bool
	Err      error
}

// Scenario runs two workers over two shared locks.
type Scenario struct {
	first, second *Lock
	delay         time.Duration
	ordered       bool
	logger        *slog.Logger

	mu       sync.Mutex
	progress map[string]*Progress
	err      error
	done     chan struct{}
}

type Option func(*Scenario)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scenario) { s.logger = logger }
}

// NewCrossed makes worker A take L1 then L2 while worker B takes L2 then L1.
// delay is slept while holding the first lock, which makes the workers
// collide.
func NewCrossed(delay time.Duration, opts ...Option) *Scenario {
	return newScenario(delay, false, opts)
}

// NewOrdered makes both workers take L1 before L2. It always completes.
func NewOrdered(delay time.Duration, opts ...Option) *Scenario {
	return newScenario(delay, true, opts)
}

func newScenario(delay time.Duration, ordered bool, opts []Option) *Scenario {
	s := &Scenario{
		first:    NewLock("L1"),
		second:   NewLock("L2"),
		delay:    delay,
		ordered:  ordered,
		logger:   slog.New(slog.DiscardHandler),
		progress: make(map[string]*Progress),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts both workers and returns a channel closed when both have
// returned. In the crossed scenario that happens only once ctx ends, and Err
// then reports the cancellation.
func (s *Scenario) Run(ctx context.Context) <-chan struct{} {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		panic("deadlock: scenario run twice")
	}
	s.done = make(chan struct{})
	s.mu.Unlock()

	orderB := []*Lock{s.second, s.first}
	if s.ordered {
		orderB = []*Lock{s.first, s.second}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = s.work(ctx, "A", []*Lock{s.first, s.second})
	}()
	go func() {
		defer wg.Done()
		errs[1] = s.work(ctx, "B", orderB)
	}()

	go func() {
		wg.Wait()
		s.mu.Lock()
		s.err = errors.Join(errs...)
		s.mu.Unlock()
		close(s.done)
	}()
	return s.done
}

// Err is valid once the channel returned by Run is closed.
func (s *Scenario) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Progress returns a snapshot of both workers, sorted by name.
func (s *Scenario) Progress() []Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Progress
	for _, name := range []string{"A", "B"} {
		p, ok := s.progress[name]
		if !ok {
			continue
		}
		cp := *p
		cp.Holding = append([]string(nil), p.Holding...)
		out = append(out, cp)
	}
	return out
}

func (s *Scenario) work(ctx context.Context, worker string, locks []*Lock) error {
	s.update(worker, func(p *Progress) {})

	var held []*Lock
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release()
		}
		s.update(worker, func(p *Progress) { p.Holding = nil })
	}()

	for i, lock := range locks {
		s.update(worker, func(p *Progress) { p.Waiting = lock.Name() })
		s.logger.Debug("acquiring", "worker", worker, "lock", lock.Name())
		if err := lock.Acquire(ctx); err != nil {
			s.logger.Info("acquisition abandoned", "worker", worker, "lock", lock.Name(), "error", err)
			s.update(worker, func(p *Progress) { p.Finished, p.Err = true, err })
			return err
		}
		held = append(held, lock)
		s.update(worker, func(p *Progress) {
			p.Waiting = ""
			p.Holding = append(p.Holding, lock.Name())
		})

		if i == 0 && s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				s.update(worker, func(p *Progress) { p.Finished, p.Err = true, ctx.Err() })
				return ctx.Err()
			}
		}
	}

	s.logger.Debug("critical section", "worker", worker)
	s.update(worker, func(p *Progress) { p.Finished = true })
	return nil
}

func (s *Scenario) update(worker string, fn func(*Progress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[worker]
	if !ok {
		p = &Progress{Worker: worker}
		s.progress[worker] = p
	}
	fn(p)
}
