package cmd

import (
	"captains-log/config"
	"captains-log/repository"
	server2 "captains-log/server"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func migrate(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, closer := server2.SetupLogger(config)
			defer closer.Close()

			repo, err := repository.NewRepo(config.DB, false)
			if err != nil {
				return err
			}
			if err := repo.AutoMigrate(ctx); err != nil {
				return err
			}
			zerolog.Ctx(ctx).Info().Msg("schema migrated")
			return nil
		},
	}
}
