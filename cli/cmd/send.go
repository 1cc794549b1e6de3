package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

func newSendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a process-creation event",
		Long:  "Send a single process-creation event to the ingestion service",
		Example: `  sentinel send --process 'C:\Windows\System32\cmd.exe' --parent 'C:\Windows\explorer.exe'
  sentinel send --hostname WS-01 --details "Process 'a.exe' launched by 'b.exe'"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			hostname, _ := flags.GetString("hostname")
			process, _ := flags.GetString("process")
			parent, _ := flags.GetString("parent")
			details, _ := flags.GetString("details")
			eventType, _ := flags.GetString("event-type")

			if hostname == "" {
				hostname, _ = os.Hostname()
			}
			if details == "" && process == "" {
				return fmt.Errorf("either --process or --details is required")
			}

			ev := models.NewProcessCreation(hostname, process, parent, time.Now())
			if details != "" {
				ev.Details = details
			}
			if eventType != "" {
				ev.EventType = eventType
			}
			if err := ev.Validate(); err != nil {
				return err
			}

			if err := a.client.SendEvent(cmd.Context(), ev); err != nil {
				return fmt.Errorf("failed to send event: %w", err)
			}
			a.out.Success("Event sent for %s", ev.Hostname)
			return nil
		},
	}

	cmd.Flags().String("hostname", "", "hostname to report (default: this host)")
	cmd.Flags().String("process", "", "path of the new process")
	cmd.Flags().String("parent", `C:\Windows\explorer.exe`, "path of the parent process")
	cmd.Flags().String("details", "", "explicit details text, overrides --process/--parent")
	cmd.Flags().String("event-type", "", "event type (default: Process Creation)")
	return cmd
}
