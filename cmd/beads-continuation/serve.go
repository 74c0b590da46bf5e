package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/beads-continuation/internal/config"
	"github.com/kingrea/beads-continuation/internal/continuation"
	"github.com/kingrea/beads-continuation/internal/eventbridge"
	"github.com/kingrea/beads-continuation/internal/host"
	"github.com/kingrea/beads-continuation/internal/logging"
	"github.com/kingrea/beads-continuation/internal/tracker"
	"github.com/kingrea/beads-continuation/internal/vcs"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the event bridge and continuation dispatcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	bindServeFlags(cmd, opts)
	return cmd
}

// loadProject prepares the project directory and returns its config.
func loadProject(project string) (*config.Config, error) {
	projectDir, err := resolveProject(project)
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnvFile(projectDir); err != nil {
		return nil, err
	}
	if err := config.InitDir(projectDir); err != nil {
		return nil, err
	}
	return config.NewConfig(projectDir)
}

func newTracker(cfg *config.Config) *tracker.Client {
	return tracker.NewClient(
		tracker.WithCommand(cfg.TrackerCommand()),
		tracker.WithDir(cfg.ProjectDir),
		tracker.WithTimeout(cfg.TrackerTimeout()),
	)
}

func runServe(ctx context.Context, opts *rootOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadProject(opts.project)
	if err != nil {
		return err
	}

	fileLog, err := logging.New(cfg.LogsDir())
	if err != nil {
		return err
	}
	defer fileLog.Close()
	logger := fileLog
	if opts.verbose {
		logger = fileLog.Tee(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var h continuation.Host = host.NewClient(cfg.HostURL())
	if opts.dryRun {
		h = host.NewConsoleNotifier(out)
	}
	dispatcher := continuation.New(
		newTracker(cfg),
		vcs.NewResolver(cfg.VCSCommand(), cfg.ProjectDir, nil),
		h,
		continuation.WithLogger(logger),
		continuation.WithContext(ctx),
	)

	router := eventbridge.NewRouter(eventbridge.RouterWithLogger(logger))
	done := make(chan struct{})
	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		router.Run(done, dispatcher)
	}()
	stopRouter := func() {
		close(done)
		<-routerDone
		dispatcher.Close()
	}

	server := eventbridge.NewServer(
		eventbridge.SettingsFromConfig(cfg),
		eventbridge.WithProcessor(router),
		eventbridge.WithSessions(func() any { return dispatcher.Sessions() }),
		eventbridge.WithLogger(logger),
	)
	if err := server.Start(ctx); err != nil {
		stopRouter()
		if errors.Is(err, eventbridge.ErrServerDisabled) {
			return fmt.Errorf("bridge is disabled in %s", cfg.ProjectConfigPath())
		}
		return err
	}
	logger.Printf("serve: project %s, host %s, dry-run=%t", cfg.ProjectDir, cfg.HostURL(), opts.dryRun)
	fmt.Fprintf(out, "beads-continuation listening on %s\n", server.BaseURL())

	<-ctx.Done()
	logger.Printf("serve: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := server.Shutdown(shutdownCtx)
	stopRouter()
	if shutdownErr != nil {
		return fmt.Errorf("shutdown bridge: %w", shutdownErr)
	}
	return nil
}
