package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/config"
	"github.com/spf13/cobra"
)

// app is the state shared by all subcommands, filled in before any of them
// runs.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "prn",
		Short:         "Run, time out and supervise processes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to the YAML config (default $PRN_CONFIG)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newRaceCmd(a))
	root.AddCommand(newDeadlockCmd(a))
	root.AddCommand(newRemoteCmd(a))

	return root
}

// exitError carries the process exit status prn should end with.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Exit statuses for runs that did not exit on their own, as timeout(1) and
// shells report them.
const (
	exitTimedOut    = 124
	exitSpawnFailed = 127
	exitTerminated  = 137
)

func exitStatus(result *lib.RunResult) error {
	switch result.Status {
	case lib.RunStatusExited:
		if *result.ExitCode == 0 {
			return nil
		}
		return &exitError{code: *result.ExitCode}
	case lib.RunStatusTimedOut:
		return &exitError{code: exitTimedOut}
	case lib.RunStatusSpawnFailed:
		return &exitError{code: exitSpawnFailed}
	default:
		return &exitError{code: exitTerminated}
	}
}

func requireCommand(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return errors.New("command to execute is required; use -- to separate CLI flags from the command")
	}
	return nil
}
