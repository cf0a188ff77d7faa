package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lawnpro/crew-ops/internal/service/quests"
)

func seedCmd(configPath *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the quests listed in a YAML catalog",
		Long: `seed creates every catalog quest whose id does not exist yet.
Existing quests are left untouched, so the command can be re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if file == "" {
				file = cfg.Quests.SeedFile
			}
			if file == "" {
				return fmt.Errorf("no seed file: pass --file or set quests.seed_file")
			}

			catalog, err := quests.LoadSeed(file)
			if err != nil {
				return err
			}

			loc, err := cfg.Quests.GetLocation()
			if err != nil {
				return err
			}

			svc := quests.NewService(db, nil, nil, loc, log.Component("quests"))
			created, skipped, err := svc.Seed(cmd.Context(), catalog, "seed")
			if err != nil {
				return err
			}

			fmt.Printf("Seeded %d quests (%d already present)\n", created, skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Quest catalog (defaults to quests.seed_file)")
	return cmd
}
