package main

import (
	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(log.Component("migrate")); err != nil {
				log.Error().Err(err).Msg("Migration failed")
				return err
			}
			return nil
		},
	}
}
