package main

import (
	apiv1 "github.com/SanjoDeundiak/process-watchdog/api/v1"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/watchdog"
)

func toRunResponse(r *lib.RunResult) *apiv1.RunResponse {
	resp := &apiv1.RunResponse{
		ID:         r.ID,
		Status:     r.Status.String(),
		Stdout:     r.Stdout,
		Stderr:     r.Stderr,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.ExitCode != nil {
		code := *r.ExitCode
		resp.ExitCode = &code
	}
	if r.SpawnError != nil {
		resp.Error = r.SpawnError.Error()
	}
	return resp
}

func toWatchStatus(e *watchEntry, st watchdog.Status) *apiv1.WatchStatus {
	ws := &apiv1.WatchStatus{
		WatchID:  e.id,
		Command:  e.command.String(),
		State:    st.State.String(),
		Reason:   st.Reason.String(),
		Restarts: st.Restarts,
		Spawns:   st.Spawns,
		PID:      st.PID,
	}
	for _, exit := range st.Exits {
		we := apiv1.WatchExit{
			PID:      exit.PID,
			ExitCode: exit.Status.ExitCode,
			Signal:   exit.Status.Signal,
			At:       exit.At,
		}
		if exit.SpawnError != nil {
			we.SpawnError = exit.SpawnError.Error()
		}
		ws.Exits = append(ws.Exits, we)
	}
	return ws
}
