package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sakenfor/pixsim7-sub008/internal/state"
)

func newServiceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Start, stop or restart a managed service",
	}

	cmd.AddCommand(newServiceActionCommand("start", "Start a service"))
	cmd.AddCommand(newServiceActionCommand("stop", "Stop a service"))
	cmd.AddCommand(newServiceActionCommand("restart", "Restart a service"))

	return cmd
}

func newServiceActionCommand(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <service>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			var snap state.Snapshot
			if err := c.post("/api/services/"+args[0]+"/"+action, &snap); err != nil {
				return err
			}
			fmt.Printf("%s: %s (health %s)\n", snap.Key, snap.Status, snap.Health)
			return nil
		},
	}
}
