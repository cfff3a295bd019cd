package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	apiv1 "github.com/SanjoDeundiak/process-watchdog/api/v1"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
)

// remoteTimeout bounds calls that return at once, and is the slack added to
// an explicit run timeout. Tests shrink it.
var remoteTimeout = 15 * time.Second

func newRemoteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a prn-server over mTLS",
	}
	cmd.AddCommand(newRemoteRunCmd(a))
	cmd.AddCommand(newRemoteWatchCmd(a))
	cmd.AddCommand(newRemoteStatusCmd(a))
	cmd.AddCommand(newRemoteStopCmd(a))
	return cmd
}

// dialOptions is replaced in tests to reach an in-memory server.
var dialOptions []grpc.DialOption

func withClient(a *app, fn func(*apiv1.SupervisorClient) error) error {
	conn, err := dial(a.cfg.Server, dialOptions...)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(apiv1.NewSupervisorClient(conn))
}

func newRemoteRunCmd(a *app) *cobra.Command {
	var (
		timeout time.Duration
		env     []string
		stdin   string
		dir     string
		nice    int
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Run a command on the server and wait for it",
		Args:  requireCommand,
		RunE: func(cmd *cobra.Command, args []string) error {
			// the server kills the child when the call is cancelled, so without
			// an explicit timeout the call must not have a deadline either
			ctx, cancel := cmd.Context(), context.CancelFunc(func() {})
			if timeout > 0 {
				ctx, cancel = context.WithTimeout(cmd.Context(), timeout+remoteTimeout)
			}
			defer cancel()

			req := &apiv1.RunRequest{
				Command:  args[0],
				Args:     args[1:],
				Env:      env,
				Stdin:    stdin,
				Dir:      dir,
				Priority: nice,
				Timeout:  timeout,
			}
			return withClient(a, func(c *apiv1.SupervisorClient) error {
				resp, err := c.Run(ctx, req)
				if err != nil {
					return err
				}
				_, _ = io.WriteString(cmd.OutOrStdout(), resp.Stdout)
				_, _ = io.WriteString(cmd.ErrOrStderr(), resp.Stderr)

				code := "none"
				if resp.ExitCode != nil {
					code = fmt.Sprint(*resp.ExitCode)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), styles.Faint.Render(fmt.Sprintf("%s: %s, exit code %s", resp.ID, resp.Status, code)))

				switch {
				case resp.ExitCode != nil && *resp.ExitCode == 0:
					return nil
				case resp.ExitCode != nil:
					return &exitError{code: *resp.ExitCode}
				case resp.Status == "timed out":
					return &exitError{code: exitTimedOut}
				case resp.Status == "spawn failed":
					return &exitError{code: exitSpawnFailed}
				default:
					return &exitError{code: exitTerminated}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "kill the command after this long (0 = server default)")
	cmd.Flags().StringArrayVarP(&env, "env", "e", nil, "extra environment entry KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&stdin, "stdin", "", "text written to the command's standard input")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory on the server")
	cmd.Flags().IntVar(&nice, "nice", 0, "nice value applied after spawn")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newRemoteWatchCmd(a *app) *cobra.Command {
	var (
		interval    time.Duration
		maxRestarts int
		terminate   bool
		grace       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [flags] -- <command> [args...]",
		Short: "Start supervising a command on the server",
		Args:  requireCommand,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), remoteTimeout)
			defer cancel()

			req := &apiv1.StartWatchRequest{
				Command:         args[0],
				Args:            args[1:],
				CheckInterval:   interval,
				TerminateOnStop: terminate,
				StopGrace:       grace,
			}
			if cmd.Flags().Changed("max-restarts") {
				req.MaxRestarts = &maxRestarts
			}

			return withClient(a, func(c *apiv1.SupervisorClient) error {
				resp, err := c.StartWatch(ctx, req)
				if err != nil {
					return err
				}
				// Print only the watch ID so scripts can capture it
				fmt.Fprintln(cmd.OutOrStdout(), resp.WatchID)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "how often the process is checked (0 = server default)")
	cmd.Flags().IntVar(&maxRestarts, "max-restarts", 0, "restart budget (default: server config)")
	cmd.Flags().BoolVar(&terminate, "terminate", false, "kill the command when the watch stops")
	cmd.Flags().DurationVar(&grace, "grace", 0, "with --terminate, SIGTERM grace period before SIGKILL")
	return cmd
}

func newRemoteStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <watch_id>",
		Short: "Get status of a watch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), remoteTimeout)
			defer cancel()

			return withClient(a, func(c *apiv1.SupervisorClient) error {
				resp, err := c.WatchStatus(ctx, &apiv1.WatchRequest{WatchID: args[0]})
				if err != nil {
					if grpcCode(err) == codes.PermissionDenied {
						_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Forbidden. Only the creator of the watch can get its status.")
						return nil
					}
					return err
				}
				printWatchStatus(cmd.OutOrStdout(), remoteView(resp))
				return nil
			})
		},
	}
}

func newRemoteStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <watch_id>",
		Short: "Stop a watch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), remoteTimeout)
			defer cancel()

			return withClient(a, func(c *apiv1.SupervisorClient) error {
				resp, err := c.StopWatch(ctx, &apiv1.WatchRequest{WatchID: args[0]})
				if err != nil {
					if grpcCode(err) == codes.PermissionDenied {
						_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Forbidden. Only the creator of the watch can stop it.")
						return nil
					}
					return err
				}
				printWatchStatus(cmd.OutOrStdout(), remoteView(resp))
				return nil
			})
		},
	}
}

func remoteView(w *apiv1.WatchStatus) statusView {
	return statusView{
		ID:       w.WatchID,
		Command:  strings.TrimSpace(w.Command),
		State:    w.State,
		Reason:   w.Reason,
		Restarts: w.Restarts,
		Spawns:   w.Spawns,
		PID:      w.PID,
	}
}
