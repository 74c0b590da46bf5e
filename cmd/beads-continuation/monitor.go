package main

import (
	"github.com/spf13/cobra"

	"github.com/kingrea/beads-continuation/internal/eventbridge"
	"github.com/kingrea/beads-continuation/internal/monitor"
)

func newMonitorCmd(opts *rootOptions) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch session state on a running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				cfg, err := loadProject(opts.project)
				if err != nil {
					return err
				}
				url = eventbridge.SettingsFromConfig(cfg).URL()
			}
			return monitor.Run(monitor.HTTPFetcher(url, nil), url)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "bridge base URL (defaults to the configured bridge)")
	return cmd
}
