package cli

import (
	"github.com/spf13/cobra"

	"github.com/Sakenfor/pixsim7-sub008/internal/app"
	"github.com/Sakenfor/pixsim7-sub008/internal/config"
	"github.com/Sakenfor/pixsim7-sub008/internal/logger"
)

func newServeCommand() *cobra.Command {
	var (
		port      int
		autoStart bool
		noHistory bool
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the launcher and its API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetLevel(logLevel)

			global, err := config.LoadGlobalConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				global.Server.Port = port
			}

			application, err := app.New(global, app.Options{
				HistoryEnabled: !noHistory,
				ServeAPI:       true,
				AutoStart:      autoStart,
			})
			if err != nil {
				return err
			}

			return application.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "API server port (overrides config)")
	cmd.Flags().BoolVar(&autoStart, "auto-start", false, "start all defined services on launch")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "disable event history persistence")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}
