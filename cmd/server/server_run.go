package main

import (
	"context"
	"strings"

	apiv1 "github.com/SanjoDeundiak/process-watchdog/api/v1"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *SupervisorService) Run(ctx context.Context, request *apiv1.RunRequest) (*apiv1.RunResponse, error) {
	if strings.TrimSpace(request.Command) == "" {
		return nil, status.Error(codes.InvalidArgument, "command is required")
	}
	if request.Timeout < 0 {
		return nil, status.Error(codes.InvalidArgument, "timeout must not be negative")
	}

	command := lib.Command{
		Command:  request.Command,
		Args:     request.Args,
		Env:      request.Env,
		Dir:      request.Dir,
		Stdin:    request.Stdin,
		Priority: request.Priority,
	}
	timeout := request.Timeout
	if timeout == 0 {
		timeout = s.cfg.Run.Timeout
	}

	s.logger.Info("run", "command", command.String(), "timeout", timeout, "owner", owner(ctx))
	result, err := s.logged.Run(ctx, command, timeout)
	if err != nil {
		// the run happened; only its record is missing
		s.logger.Error("recording run failed", "id", result.ID, "error", err)
	}
	s.logger.Info("run finished", "id", result.ID, "status", result.Status.String(), "duration", result.Duration())

	return toRunResponse(result), nil
}

func owner(ctx context.Context) string {
	if id := extractSpiffeIdFromContext(ctx); id != nil {
		return *id
	}
	return ""
}
