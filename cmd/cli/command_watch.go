package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/runner"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/watchdog"
	"github.com/spf13/cobra"
)

const (
	followPoll  = 50 * time.Millisecond
	followDrain = 500 * time.Millisecond
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		interval     time.Duration
		maxRestarts  int
		restartDelay time.Duration
		terminate    bool
		grace        time.Duration
		follow       bool
	)

	cmd := &cobra.Command{
		Use:   "watch [flags] -- <command> [args...]",
		Short: "Keep a command running, restarting it when it exits",
		Long: "Keep a command running, restarting it when it exits, until the restart budget is spent.\n" +
			"Stop with Ctrl+C, SIGTERM, or by typing q and Enter.\n\n" +
			fmt.Sprintf("--follow looks for a new child every %s; a child that exits and is\n"+
				"released between two looks has its output skipped.", followPoll),
		Args: requireCommand,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults := a.cfg.Watch
			if !cmd.Flags().Changed("interval") {
				interval = defaults.CheckInterval
			}
			if !cmd.Flags().Changed("max-restarts") {
				maxRestarts = defaults.MaxRestarts
			}
			if !cmd.Flags().Changed("restart-delay") {
				restartDelay = defaults.RestartDelay
			}
			if !cmd.Flags().Changed("terminate") {
				terminate = defaults.TerminateOnStop
			}
			if !cmd.Flags().Changed("grace") {
				grace = defaults.StopGrace
			}

			r, err := runner.NewRunner(runner.WithLogger(a.logger), runner.WithWorkDirRoot(a.cfg.WorkDirRoot))
			if err != nil {
				return err
			}
			wd, err := watchdog.New(r, watchdog.Config{
				Command:         lib.Command{Command: args[0], Args: args[1:]},
				CheckInterval:   interval,
				MaxRestarts:     maxRestarts,
				RestartDelay:    restartDelay,
				TerminateOnStop: terminate,
				StopGrace:       grace,
			}, watchdog.WithLogger(a.logger))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := wd.Start(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (pid %d), checking every %s; type q and Enter to stop\n",
				styles.Header.Render("watching"), strings.Join(args, " "), wd.Status().PID, interval)

			go stopOnQuit(cmd.InOrStdin(), wd.Stop)
			var followed <-chan struct{}
			if follow {
				followed = followOutput(ctx, r, wd, out, cmd.ErrOrStderr())
			}

			<-wd.Done()
			if followed != nil {
				<-followed
			}
			st := wd.Status()
			printWatchStatus(out, statusView{
				ID:       "local",
				Command:  strings.Join(args, " "),
				State:    st.State.String(),
				Reason:   st.Reason.String(),
				Restarts: st.Restarts,
				Spawns:   st.Spawns,
			})
			return nil
		},
	}

	// flags after the command belong to the command
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().DurationVar(&interval, "interval", 0, "how often the process is checked (default from config)")
	cmd.Flags().IntVar(&maxRestarts, "max-restarts", 0, "restart budget (default from config)")
	cmd.Flags().DurationVar(&restartDelay, "restart-delay", 0, "pause between an exit and the restart")
	cmd.Flags().BoolVar(&terminate, "terminate", false, "kill the command when the watch stops")
	cmd.Flags().DurationVar(&grace, "grace", 0, "with --terminate, send SIGTERM and wait this long before SIGKILL")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, fmt.Sprintf("copy each child's output to the terminal (children living under %s may be missed)", followPoll))
	return cmd
}

// stopOnQuit calls stop when a line reading "q" arrives on in.
func stopOnQuit(in io.Reader, stop func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "q") {
			stop()
			return
		}
	}
}

// followOutput streams the output of every child the watchdog spawns. The
// returned channel closes once the watchdog is done and the pending output
// has been copied, or followDrain has passed.
func followOutput(ctx context.Context, r *runner.Runner, wd *watchdog.Watchdog, stdout, stderr io.Writer) <-chan struct{} {
	finished := make(chan struct{})
	go func() {
		defer close(finished)

		ticker := time.NewTicker(followPoll)
		defer ticker.Stop()

		var pumps sync.WaitGroup
		var last string
		for {
			if id := wd.Status().ProcessID; id != "" && id != last {
				last = id
				// a child reaped and released between polls is skipped
				if outCh, errCh, err := r.Output(id); err == nil {
					pumps.Add(2)
					go pump(outCh, stdout, &pumps)
					go pump(errCh, stderr, &pumps)
				}
			}
			select {
			case <-wd.Done():
			case <-ctx.Done():
			case <-ticker.C:
				continue
			}
			break
		}

		drained := make(chan struct{})
		go func() {
			pumps.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(followDrain):
		}
	}()
	return finished
}

// pump keeps draining ch after a write error so the storage never blocks.
func pump(ch <-chan []byte, w io.Writer, wg *sync.WaitGroup) {
	defer wg.Done()
	broken := false
	for chunk := range ch {
		if broken {
			continue
		}
		if _, err := w.Write(chunk); err != nil {
			broken = true
		}
	}
}
