// cmd/beads-continuation/main.go
//
// Entry point for the beads-continuation daemon.
//
// Flow (serve, the default):
// 1. Load .env and .beads-continuation/config.yaml for the project
// 2. Wire bd, git and the OpenCode host into a continuation Dispatcher
// 3. Serve the event bridge until SIGINT/SIGTERM

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	project string
	dryRun  bool
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "beads-continuation",
		Short:         "Keep OpenCode sessions working while beads are in progress",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	root.PersistentFlags().StringVar(&opts.project, "project", "", "project directory (defaults to the working directory)")
	bindServeFlags(root, opts)

	root.AddCommand(
		newServeCmd(opts),
		newPreviewCmd(opts),
		newMonitorCmd(opts),
		newVersionCmd(),
	)
	return root
}

func bindServeFlags(cmd *cobra.Command, opts *rootOptions) {
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print toasts and prompts instead of calling the host")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "mirror the log file to stderr")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "beads-continuation %s\n", version)
		},
	}
}

// resolveProject returns an absolute project directory.
func resolveProject(project string) (string, error) {
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		return cwd, nil
	}
	abs, err := filepath.Abs(project)
	if err != nil {
		return "", fmt.Errorf("resolve project %s: %w", project, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project %s is not a directory", abs)
	}
	return abs, nil
}
