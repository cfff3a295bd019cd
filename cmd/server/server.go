package main

import (
	"context"
	"log/slog"
	"sync"

	apiv1 "github.com/SanjoDeundiak/process-watchdog/api/v1"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/config"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/execlog"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/runner"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/watchdog"
)

// SupervisorService implements apiv1.SupervisorServer on top of one runner.
// Lock order: mu, then a watchdog's own lock, then the runner registry. mu
// is never held while calling into a watchdog.
type SupervisorService struct {
	apiv1.UnimplementedSupervisorServer

	runner *runner.Runner
	logged *execlog.LoggedRunner
	cfg    *config.Config
	logger *slog.Logger

	// ctx bounds every watchdog; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	watches map[string]*watchEntry
}

type watchEntry struct {
	id      string
	owner   string
	command lib.Command
	wd      *watchdog.Watchdog
}

func NewSupervisorService(r *runner.Runner, execLog *execlog.Logger, cfg *config.Config, logger *slog.Logger) *SupervisorService {
	ctx, cancel := context.WithCancel(context.Background())
	return &SupervisorService{
		runner:  r,
		logged:  execlog.NewLoggedRunner(r, execLog),
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		watches: make(map[string]*watchEntry),
	}
}

// Close stops every watch and waits for the loops to finish.
func (s *SupervisorService) Close() {
	s.cancel()

	s.mu.RLock()
	entries := make([]*watchEntry, 0, len(s.watches))
	for _, e := range s.watches {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		<-e.wd.Done()
	}
}
