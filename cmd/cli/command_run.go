package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/execlog"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/runner"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		timeout time.Duration
		logPath string
		noLog   bool
		env     []string
		stdin   string
		dir     string
		nice    int
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Run a command to completion and append it to the execution log",
		Args:  requireCommand,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("timeout") {
				timeout = a.cfg.Run.Timeout
			}
			if !cmd.Flags().Changed("log") {
				logPath = a.cfg.LogFile
			}

			r, err := runner.NewRunner(runner.WithLogger(a.logger), runner.WithWorkDirRoot(a.cfg.WorkDirRoot))
			if err != nil {
				return err
			}

			execLog := execlog.New(io.Discard)
			if !noLog {
				execLog, err = execlog.Open(logPath)
				if err != nil {
					return err
				}
				defer execLog.Close()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			command := lib.Command{Command: args[0], Args: args[1:], Env: env, Stdin: stdin, Dir: dir, Priority: nice}
			result, logErr := execlog.NewLoggedRunner(r, execLog).Run(ctx, command, timeout)

			_, _ = io.WriteString(cmd.OutOrStdout(), result.Stdout)
			_, _ = io.WriteString(cmd.ErrOrStderr(), result.Stderr)
			printRunSummary(cmd.ErrOrStderr(), result)

			if logErr != nil {
				a.logger.Error("recording run failed", "log", logPath, "error", logErr)
				if result.Succeeded() {
					return logErr
				}
			}
			return exitStatus(result)
		},
	}

	// flags after the command belong to the command
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "kill the command after this long (default from config, 0 = none)")
	cmd.Flags().StringVar(&logPath, "log", "", "execution log file (default from config)")
	cmd.Flags().BoolVar(&noLog, "no-log", false, "do not append to the execution log")
	cmd.Flags().StringArrayVarP(&env, "env", "e", nil, "extra environment entry KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&stdin, "stdin", "", "text written to the command's standard input")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory")
	cmd.Flags().IntVar(&nice, "nice", 0, "nice value applied after spawn")
	return cmd
}
