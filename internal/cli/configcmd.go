package cli

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/Sakenfor/pixsim7-sub008/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize the launcher configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration and resolved paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			global, err := config.LoadGlobalConfig()
			if err != nil {
				return err
			}

			data, err := toml.Marshal(global)
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			os.Stdout.Write(data)

			if path, err := config.ConfigFilePath(); err == nil {
				fmt.Printf("\n# config file: %s\n", path)
			}
			if path, err := global.ManifestPath(); err == nil {
				fmt.Printf("# services manifest: %s\n", path)
			}
			if dir, err := global.LogDir(); err == nil {
				fmt.Printf("# log directory: %s\n", dir)
			}
			if path, err := global.DatabasePath(); err == nil {
				fmt.Printf("# event database: %s\n", path)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigFilePath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}

			if err := config.DefaultGlobalConfig().Save(); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	})

	return cmd
}
