package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/deploy"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/events"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func deployCmd() *cobra.Command {
	var noArchive bool

	cmd := &cobra.Command{
		Use:   "deploy [business-id]",
		Short: "Build and publish a business site and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			businessID, err := parseBusinessID(args[0])
			if err != nil {
				return err
			}
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer database.Close()

			if cfg.Hosting.Token == "" {
				return fmt.Errorf("HOSTING_TOKEN is not set")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var archiver deploy.Archiver
			if cfg.Storage.Endpoint != "" && !noArchive {
				store, err := storage.NewObjectStore(ctx, cfg.Storage)
				if err != nil {
					log.Warn("Object storage unavailable, bundle will not be archived", zap.Error(err))
				} else {
					archiver = store
				}
			}

			publisher := events.New(cfg.Events)
			defer publisher.Close()

			deployer := deploy.NewDeployer(database.GetDB(), deploy.NewVercelClient(cfg.Hosting),
				archiver, publisher, cfg.Hosting, cfg.Server.PublicURL)

			dep, err := deployer.Deploy(ctx, businessID)
			if dep != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "deployment %d: %s %s\n", dep.ID, dep.Status, dep.URL)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&noArchive, "no-archive", false, "skip uploading the bundle to object storage")
	return cmd
}
