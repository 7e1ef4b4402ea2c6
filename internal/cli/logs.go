package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newLogsCommand() *cobra.Command {
	var (
		filter   string
		level    string
		maxLines int
	)

	cmd := &cobra.Command{
		Use:   "logs <service>",
		Short: "Show buffered log lines for a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			query := url.Values{}
			if filter != "" {
				query.Set("filter", filter)
			}
			if level != "" {
				query.Set("level", level)
			}
			query.Set("max_lines", strconv.Itoa(maxLines))

			var resp struct {
				Lines []string `json:"lines"`
			}
			if err := c.get("/api/services/"+args[0]+"/logs", query, &resp); err != nil {
				return err
			}
			for _, line := range resp.Lines {
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "case-insensitive substring filter")
	cmd.Flags().StringVar(&level, "level", "", "level filter (ERROR, WARNING, DEBUG, INFO, CRITICAL)")
	cmd.Flags().IntVar(&maxLines, "max-lines", 100, "maximum lines to show")

	return cmd
}
