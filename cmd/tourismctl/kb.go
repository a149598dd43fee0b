package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/chatbot"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/knowledge"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/cache"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage chatbot knowledge bases",
	}
	cmd.AddCommand(kbImportCmd())
	return cmd
}

func kbImportCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "import [business-id] [file]",
		Short: "Import a PDF, text or markdown file into a business knowledge base",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			businessID, err := parseBusinessID(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer database.Close()

			ctx := cmd.Context()
			entries, err := knowledge.Import(ctx, database.GetDB(), businessID, filepath.Base(args[1]), category, data)
			if err != nil {
				return err
			}

			// the running API caches chatbot context in Redis
			if redis, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
				log.Warn("Could not invalidate chatbot context", zap.Error(err))
			} else {
				chatbot.Invalidate(ctx, redis, businessID)
				redis.Close()
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries\n", len(entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "category for the new entries")
	return cmd
}
