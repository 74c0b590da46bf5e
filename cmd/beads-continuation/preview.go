package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kingrea/beads-continuation/internal/continuation"
	"github.com/kingrea/beads-continuation/internal/host"
	"github.com/kingrea/beads-continuation/internal/vcs"
)

func newPreviewCmd(opts *rootOptions) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the continuation message for the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadProject(opts.project)
			if err != nil {
				return err
			}
			return runPreview(cmd.Context(), cmd.OutOrStdout(),
				newTracker(cfg),
				vcs.NewResolver(cfg.VCSCommand(), cfg.ProjectDir, nil),
				plain,
			)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print the raw message without styling")
	return cmd
}

func runPreview(ctx context.Context, out io.Writer, tr continuation.Tracker, branch continuation.BranchResolver, plain bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !tr.IsInitialized(ctx) {
		fmt.Fprintln(out, "beads is not initialized in this project (bd status failed).")
		return nil
	}
	items, err := tr.ListInProgress(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "No beads in progress; nothing would be injected.")
		return nil
	}
	epicID := branch.EpicID(ctx)
	ready, err := tr.ListReady(ctx, epicID)
	if err != nil {
		ready = nil
	}
	message := continuation.BuildMessage(items, epicID, ready)
	if plain {
		fmt.Fprint(out, message)
		return nil
	}
	fmt.Fprintln(out, host.RenderPrompt("preview", message))
	return nil
}
