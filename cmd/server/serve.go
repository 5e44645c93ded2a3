package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/phrazzld/scheduled-mail-api/internal/platform/postgres"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/telemetry"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
			if err != nil {
				return fmt.Errorf("tracer: %w", err)
			}
			defer shutdownTracer()

			deps, err := openDependencies(ctx, cfg, log)
			if err != nil {
				return err
			}

			if migrate && deps.db != nil {
				if err := postgres.Migrate(ctx, deps.db, "up", log); err != nil {
					deps.close(log)
					return fmt.Errorf("migrations failed: %w", err)
				}
			}

			app, err := newApplication(cfg, log, deps)
			if err != nil {
				deps.close(log)
				return err
			}
			return app.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving (postgres driver only)")
	return cmd
}

// Run blocks until ctx is cancelled, then shuts down.
func (app *application) Run(ctx context.Context) error {
	app.start()
	defer app.cleanup()

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
