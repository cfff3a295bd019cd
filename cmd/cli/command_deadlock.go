package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/deadlock"
	"github.com/spf13/cobra"
)

func newDeadlockCmd(a *app) *cobra.Command {
	var (
		ordered bool
		delay   time.Duration
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "deadlock",
		Short: "Reproduce a lock-ordering deadlock between two workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := deadlock.NewCrossed(delay, deadlock.WithLogger(a.logger))
			if ordered {
				s = deadlock.NewOrdered(delay, deadlock.WithLogger(a.logger))
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			done := s.Run(ctx)

			out := cmd.OutOrStdout()
			select {
			case <-done:
				fmt.Fprintln(out, styles.Good.Render("both workers finished"))
				return s.Err()
			case <-time.After(timeout):
			}

			fmt.Fprintln(out, styles.Bad.Render(fmt.Sprintf("no progress after %s: deadlock", timeout)))
			for _, p := range s.Progress() {
				fmt.Fprintf(out, "  worker %s holds [%s], waiting for %s\n", p.Worker, strings.Join(p.Holding, ", "), p.Waiting)
			}

			cancel()
			<-done
			fmt.Fprintln(out, "acquisitions abandoned, workers released")
			return nil
		},
	}

	cmd.Flags().BoolVar(&ordered, "ordered", false, "acquire both locks in one global order")
	cmd.Flags().DurationVar(&delay, "delay", 100*time.Millisecond, "time each worker holds its first lock")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "how long to wait before declaring a deadlock")
	return cmd
}
