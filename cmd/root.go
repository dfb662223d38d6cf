package cmd

import (
	"captains-log/config"

	"github.com/spf13/cobra"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "captains-log",
		Short:         "voice driven star log journal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(server(config), migrate(config), ingest(config))
	return rootCmd
}
