package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/scheduled-mail-api/internal/config"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/logger"
	"github.com/spf13/cobra"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configFile string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "mailsched",
		Short:        "Scheduled mail API: send emails now or at a scheduled time",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file path (default: ./config.yaml if present)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override server.log_level: debug | info | warn | error")

	cmd.AddCommand(
		newServeCmd(flags),
		newMigrateCmd(flags),
		newScanCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

func (f *rootFlags) options() config.Options {
	opts := config.Options{ConfigFile: f.configFile, EnvFile: f.envFile}
	if f.logLevel != "" {
		opts.Overrides = map[string]any{"server.log_level": f.logLevel}
	}
	return opts
}

// load reads and validates the full configuration and sets up logging.
func (f *rootFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadWithOptions(f.options())
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}
