// Package cli implements the launcher's command-line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pixsim-launcher",
		Short: "Local service launcher for the pixsim stack",
		Long: `pixsim-launcher starts, stops and monitors the local dependent services
of the pixsim stack (database, generation backend, front-end dev servers).
It captures their logs, probes their health on an adaptive cadence and
exposes everything over a local HTTP/WebSocket API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newLogsCommand())
	rootCmd.AddCommand(newServiceCommand())
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}

// Execute runs the CLI with the given context.
func Execute(ctx context.Context, args []string) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
