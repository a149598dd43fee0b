package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "tourismctl",
		Short:         "Operator tasks for the TourismOS platform",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(deployCmd())
	rootCmd.AddCommand(kbCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and opens the database
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.InitLogger(cfg)
	if err := database.InitDB(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, logger.GetLogger(), nil
}

func parseBusinessID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid business id %q", arg)
	}
	return uint(id), nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, err := setup()
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.Migrate(database.GetDB()); err != nil {
				return err
			}
			log.Info("Database migrated")
			return nil
		},
	}
}
