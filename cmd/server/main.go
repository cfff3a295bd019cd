package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/config"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/execlog"
	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/runner"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "prn-server",
		Short:         "Process watchdog gRPC server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config (default $PRN_CONFIG)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	r, err := runner.NewRunner(runner.WithLogger(logger.With("component", "runner")), runner.WithWorkDirRoot(cfg.WorkDirRoot))
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	execLog, err := execlog.Open(cfg.LogFile)
	if err != nil {
		return err
	}
	defer execLog.Close()

	svc := NewSupervisorService(r, execLog, cfg, logger)
	defer svc.Close()

	srv, err := NewGRPCServer(cfg, svc, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		srv.Stop()
	}()

	logger.Info("server (TLS) listening", "address", srv.Addr().String(), "log_file", cfg.LogFile)
	return srv.Serve()
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
