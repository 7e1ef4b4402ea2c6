package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Sakenfor/pixsim7-sub008/internal/state"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of every managed service",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			var resp struct {
				Services []state.Snapshot `json:"services"`
			}
			if err := c.get("/api/services", nil, &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tSTATUS\tHEALTH\tPID\tLAST ERROR")
			for _, snap := range resp.Services {
				pid := "-"
				if snap.PID != 0 {
					pid = fmt.Sprintf("%d", snap.PID)
				} else if snap.External {
					pid = "external"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					snap.Key, snap.Status, snap.Health, pid, snap.LastError)
			}
			return w.Flush()
		},
	}
}
