package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-sentinel/cli/internal/client"
	"github.com/telhawk-systems/telhawk-sentinel/cli/pkg/output"
	"github.com/telhawk-systems/telhawk-sentinel/common/config"
)

// app is the state shared by subcommands once flags and config are resolved.
type app struct {
	cfg    *config.CLIConfig
	client *client.Client
	out    *output.Printer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "sentinel",
		Short: "TelHawk Sentinel CLI",
		Long: `sentinel is the command-line interface for TelHawk Sentinel.

Inspect recent security events, submit test events and check the health of the
ingest and query services from your terminal.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("output", "o", "", "output format: table, json, yaml")
	flags.String("ingest-url", "", "ingest service URL")
	flags.String("query-url", "", "query service URL")
	flags.Duration("timeout", 0, "request timeout")

	root.AddCommand(
		newEventsCmd(a),
		newSendCmd(a),
		newSeedCmd(a),
		newHealthCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadCLI()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Could not load config: %v\n", err)
		cfg = config.DefaultCLI()
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("output"); v != "" {
		cfg.Output = v
	}
	if v, _ := flags.GetString("ingest-url"); v != "" {
		cfg.IngestURL = v
	}
	if v, _ := flags.GetString("query-url"); v != "" {
		cfg.QueryURL = v
	}
	if v, _ := flags.GetDuration("timeout"); v > 0 {
		cfg.Timeout = v
	}
	if !output.ValidFormat(cfg.Output) {
		return fmt.Errorf("unsupported output format %q (use table, json or yaml)", cfg.Output)
	}

	a.cfg = cfg
	a.client = client.New(cfg.IngestURL, cfg.QueryURL, cfg.Timeout)
	a.out = output.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Execute runs the CLI.
func Execute() error {
	root := newRootCmd()
	err := root.Execute()
	if err != nil {
		output.New(root.OutOrStdout(), root.ErrOrStderr()).Error("%v", err)
	}
	return err
}
