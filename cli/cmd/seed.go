package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-sentinel/cli/internal/seed"
	"github.com/telhawk-systems/telhawk-sentinel/cli/pkg/output"
)

func newSeedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Send synthetic process-creation events",
		Example: `  sentinel seed --count 100 --hosts 5
  sentinel seed --count 20 --seed 42 --interval 250ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			count, _ := flags.GetInt("count")
			hosts, _ := flags.GetInt("hosts")
			seedValue, _ := flags.GetInt64("seed")
			interval, _ := flags.GetDuration("interval")
			dryRun, _ := flags.GetBool("dry-run")

			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}

			gen := seed.New(seedValue, hosts)
			events := gen.Events(count, time.Now())
			if dryRun {
				if a.cfg.Output == output.FormatTable {
					return a.out.JSON(events)
				}
				return a.out.Structured(a.cfg.Output, events)
			}

			sent, failed := 0, 0
			for i, ev := range events {
				if err := a.client.SendEvent(cmd.Context(), ev); err != nil {
					failed++
					a.out.Warn("event %d failed: %v", i+1, err)
				} else {
					sent++
				}
				if interval > 0 && i < len(events)-1 {
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					case <-time.After(interval):
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d events failed", failed, count)
			}
			a.out.Success("Sent %d events from %d hosts", sent, len(gen.Hosts()))
			return nil
		},
	}

	cmd.Flags().IntP("count", "n", 10, "number of events to send")
	cmd.Flags().Int("hosts", 3, "number of distinct hostnames")
	cmd.Flags().Int64("seed", 0, "random seed (0 is random)")
	cmd.Flags().Duration("interval", 0, "delay between events")
	cmd.Flags().Bool("dry-run", false, "print the events instead of sending them")
	return cmd
}
