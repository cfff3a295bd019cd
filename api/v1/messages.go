package apiv1

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// RunRequest runs a command to completion. Timeout of zero means none.
type RunRequest struct {
	Command  string
	Args     []string
	Env      []string
	Dir      string
	Stdin    string
	Priority int
	Timeout  time.Duration
}

// RunResponse mirrors lib.RunResult. ExitCode is nil unless Status is
// "exited".
type RunResponse struct {
	ID         string
	Status     string
	ExitCode   *int
	Stdout     string
	Stderr     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// StartWatchRequest starts supervising a command. Zero values take the
// server's configured defaults, except MaxRestarts which is nil for the
// default since zero is a valid budget.
type StartWatchRequest struct {
	Command         string
	Args            []string
	Env             []string
	Dir             string
	CheckInterval   time.Duration
	MaxRestarts     *int
	RestartDelay    time.Duration
	TerminateOnStop bool
	StopGrace       time.Duration
}

type WatchRequest struct {
	WatchID string
}

type WatchExit struct {
	PID        int
	ExitCode   *int
	Signal     string
	SpawnError string
	At         time.Time
}

type WatchStatus struct {
	WatchID  string
	Command  string
	State    string
	Reason   string
	Restarts int
	Spawns   int
	PID      int
	Exits    []WatchExit
}

func (r *RunRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"command":  r.Command,
		"args":     anyList(r.Args),
		"env":      anyList(r.Env),
		"dir":      r.Dir,
		"stdin":    r.Stdin,
		"priority": r.Priority,
		"timeout":  r.Timeout.String(),
	})
}

func runRequestFromStruct(s *structpb.Struct) (*RunRequest, error) {
	f := fields{s: s}
	r := &RunRequest{
		Command:  f.str("command"),
		Args:     f.strs("args"),
		Env:      f.strs("env"),
		Dir:      f.str("dir"),
		Stdin:    f.str("stdin"),
		Priority: f.num("priority"),
		Timeout:  f.dur("timeout"),
	}
	return r, f.err
}

func (r *RunResponse) toStruct() (*structpb.Struct, error) {
	m := map[string]any{
		"id":          r.ID,
		"status":      r.Status,
		"stdout":      r.Stdout,
		"stderr":      r.Stderr,
		"error":       r.Error,
		"started_at":  formatTime(r.StartedAt),
		"finished_at": formatTime(r.FinishedAt),
	}
	if r.ExitCode != nil {
		m["exit_code"] = *r.ExitCode
	}
	return structpb.NewStruct(m)
}

func runResponseFromStruct(s *structpb.Struct) (*RunResponse, error) {
	f := fields{s: s}
	r := &RunResponse{
		ID:         f.str("id"),
		Status:     f.str("status"),
		ExitCode:   f.optInt("exit_code"),
		Stdout:     f.str("stdout"),
		Stderr:     f.str("stderr"),
		Error:      f.str("error"),
		StartedAt:  f.timestamp("started_at"),
		FinishedAt: f.timestamp("finished_at"),
	}
	return r, f.err
}

func (r *StartWatchRequest) toStruct() (*structpb.Struct, error) {
	m := map[string]any{
		"command":           r.Command,
		"args":              anyList(r.Args),
		"env":               anyList(r.Env),
		"dir":               r.Dir,
		"check_interval":    r.CheckInterval.String(),
		"restart_delay":     r.RestartDelay.String(),
		"terminate_on_stop": r.TerminateOnStop,
		"stop_grace":        r.StopGrace.String(),
	}
	if r.MaxRestarts != nil {
		m["max_restarts"] = *r.MaxRestarts
	}
	return structpb.NewStruct(m)
}

func startWatchRequestFromStruct(s *structpb.Struct) (*StartWatchRequest, error) {
	f := fields{s: s}
	r := &StartWatchRequest{
		Command:         f.str("command"),
		Args:            f.strs("args"),
		Env:             f.strs("env"),
		Dir:             f.str("dir"),
		CheckInterval:   f.dur("check_interval"),
		MaxRestarts:     f.optInt("max_restarts"),
		RestartDelay:    f.dur("restart_delay"),
		TerminateOnStop: f.flag("terminate_on_stop"),
		StopGrace:       f.dur("stop_grace"),
	}
	return r, f.err
}

func (r *WatchRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"watch_id": r.WatchID})
}

func watchRequestFromStruct(s *structpb.Struct) (*WatchRequest, error) {
	f := fields{s: s}
	r := &WatchRequest{WatchID: f.str("watch_id")}
	return r, f.err
}

func (w *WatchStatus) toStruct() (*structpb.Struct, error) {
	exits := make([]any, 0, len(w.Exits))
	for _, e := range w.Exits {
		m := map[string]any{
			"pid":         e.PID,
			"signal":      e.Signal,
			"spawn_error": e.SpawnError,
			"at":          formatTime(e.At),
		}
		if e.ExitCode != nil {
			m["exit_code"] = *e.ExitCode
		}
		exits = append(exits, m)
	}
	return structpb.NewStruct(map[string]any{
		"watch_id": w.WatchID,
		"command":  w.Command,
		"state":    w.State,
		"reason":   w.Reason,
		"restarts": w.Restarts,
		"spawns":   w.Spawns,
		"pid":      w.PID,
		"exits":    exits,
	})
}

func watchStatusFromStruct(s *structpb.Struct) (*WatchStatus, error) {
	f := fields{s: s}
	w := &WatchStatus{
		WatchID:  f.str("watch_id"),
		Command:  f.str("command"),
		State:    f.str("state"),
		Reason:   f.str("reason"),
		Restarts: f.num("restarts"),
		Spawns:   f.num("spawns"),
		PID:      f.num("pid"),
	}
	for _, item := range f.objects("exits") {
		ef := fields{s: item}
		w.Exits = append(w.Exits, WatchExit{
			PID:        ef.num("pid"),
			ExitCode:   ef.optInt("exit_code"),
			Signal:     ef.str("signal"),
			SpawnError: ef.str("spawn_error"),
			At:         ef.timestamp("at"),
		})
		if ef.err != nil && f.err == nil {
			f.err = ef.err
		}
	}
	return w, f.err
}
