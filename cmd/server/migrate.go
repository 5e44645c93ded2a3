package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/scheduled-mail-api/internal/config"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/logger"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|reset|status|version]",
		Short:     "Run database migrations",
		Long:      "Apply or inspect the PostgreSQL schema. Only database.url is required.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "reset", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			cfg, err := config.ReadWithOptions(flags.options())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.Database.URL == "" {
				return errors.New("database.url is required (set MAILSCHED_DATABASE_URL)")
			}
			log, err := logger.Setup(cfg.Server)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			db, err := postgres.Open(ctx, cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return postgres.Migrate(ctx, db, command, log)
		},
	}
}
