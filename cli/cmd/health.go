package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-sentinel/cli/pkg/output"
)

type serviceHealth struct {
	Service string `json:"service" yaml:"service"`
	URL     string `json:"url" yaml:"url"`
	Status  string `json:"status" yaml:"status"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the ingest and query services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := []serviceHealth{
				{Service: "ingest", URL: a.client.IngestURL()},
				{Service: "query", URL: a.client.QueryURL()},
			}
			down := 0
			for i := range results {
				status, err := a.client.Health(cmd.Context(), results[i].URL)
				if err != nil {
					results[i].Status = "DOWN"
					results[i].Error = err.Error()
					down++
					continue
				}
				results[i].Status = status
			}

			if a.cfg.Output != output.FormatTable {
				if err := a.out.Structured(a.cfg.Output, results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Error != "" {
						a.out.Error("%s (%s): %s", r.Service, r.URL, r.Error)
					} else {
						a.out.Success("%s (%s): %s", r.Service, r.URL, r.Status)
					}
				}
			}

			if down > 0 {
				return fmt.Errorf("%d service(s) unhealthy", down)
			}
			return nil
		},
	}
}
