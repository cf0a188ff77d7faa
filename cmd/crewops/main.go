// Package main provides the crewops binary entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lawnpro/crew-ops/internal/config"
	"github.com/lawnpro/crew-ops/internal/repository"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

const appName = "crewops"

// Set at build time with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Quest board and crew operations for a lawn care company",
		Long: `crewops runs the crew quest board: daily, weekly, monthly and bounty
quests, XP levels, streaks and leaderboards, plus AI-written standard
operating procedures and the QuickBooks Online vehicle list.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(
		serveCmd(&configPath),
		migrateCmd(&configPath),
		seedCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// bootstrap loads configuration and opens the database.
func bootstrap(configPath string) (*config.Config, *logger.Logger, *repository.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)

	db, err := repository.NewDB(&cfg.Database.Postgres, log.Component("database"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return cfg, log, db, nil
}
