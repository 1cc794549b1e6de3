package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-sentinel/cli/pkg/output"
)

func newEventsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List the most recent security events",
		Example: `  sentinel events
  sentinel events -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := a.client.LatestEvents(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}

			if a.cfg.Output != output.FormatTable {
				return a.out.Structured(a.cfg.Output, events)
			}
			if len(events) == 0 {
				a.out.Info("No events found")
				return nil
			}

			table := output.NewTable("TIMESTAMP", "HOSTNAME", "EVENT TYPE", "DETAILS")
			for _, ev := range events {
				table.AddRow(formatTime(ev.Timestamp), ev.Hostname, ev.EventType, ev.Details)
			}
			table.Render(cmd.OutOrStdout())
			return nil
		},
	}
}
