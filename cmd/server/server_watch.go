package main

import (
	"context"
	"errors"
	"strings"

	apiv1 "github.com/SanjoDeundiak/process-watchdog/api/v1"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/watchdog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *SupervisorService) StartWatch(ctx context.Context, request *apiv1.StartWatchRequest) (*apiv1.WatchStatus, error) {
	if strings.TrimSpace(request.Command) == "" {
		return nil, status.Error(codes.InvalidArgument, "command is required")
	}

	cfg := s.watchConfig(request)
	wd, err := watchdog.New(s.runner, cfg, watchdog.WithLogger(s.logger.With("component", "watchdog")))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}

	if err := wd.Start(s.ctx); err != nil {
		if errors.Is(err, lib.ErrSpawnFailed) {
			return nil, status.Errorf(codes.Aborted, "Error starting process: %s", err)
		}
		return nil, status.Errorf(codes.Internal, "starting watch: %v", err)
	}

	entry := &watchEntry{id: lib.NewID(), owner: owner(ctx), command: cfg.Command, wd: wd}
	s.mu.Lock()
	s.watches[entry.id] = entry
	s.mu.Unlock()

	s.logger.Info("watch started", "watch", entry.id, "command", cfg.Command.String(), "owner", entry.owner)
	return toWatchStatus(entry, wd.Status()), nil
}

func (s *SupervisorService) StopWatch(ctx context.Context, request *apiv1.WatchRequest) (*apiv1.WatchStatus, error) {
	entry, err := s.checkOwnership(ctx, request.WatchID)
	if err != nil {
		return nil, err
	}

	entry.wd.Stop()
	st, err := entry.wd.Wait(ctx)
	if err != nil {
		return nil, status.FromContextError(err).Err()
	}
	s.logger.Info("watch stopped", "watch", entry.id, "restarts", st.Restarts)
	return toWatchStatus(entry, st), nil
}

func (s *SupervisorService) WatchStatus(ctx context.Context, request *apiv1.WatchRequest) (*apiv1.WatchStatus, error) {
	entry, err := s.checkOwnership(ctx, request.WatchID)
	if err != nil {
		return nil, err
	}
	return toWatchStatus(entry, entry.wd.Status()), nil
}

// watchConfig fills request gaps from the server configuration.
func (s *SupervisorService) watchConfig(request *apiv1.StartWatchRequest) watchdog.Config {
	defaults := s.cfg.Watch
	cfg := watchdog.Config{
		Command: lib.Command{
			Command: request.Command,
			Args:    request.Args,
			Env:     request.Env,
			Dir:     request.Dir,
		},
		CheckInterval:   request.CheckInterval,
		MaxRestarts:     defaults.MaxRestarts,
		RestartDelay:    request.RestartDelay,
		TerminateOnStop: request.TerminateOnStop || defaults.TerminateOnStop,
		StopGrace:       request.StopGrace,
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = defaults.CheckInterval
	}
	if request.MaxRestarts != nil {
		cfg.MaxRestarts = *request.MaxRestarts
	}
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = defaults.RestartDelay
	}
	if cfg.StopGrace == 0 {
		cfg.StopGrace = defaults.StopGrace
	}
	return cfg
}
