package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newScanCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Dispatch every due task once and exit",
		Long: `Run one due scan against the configured store, for use from an
external scheduler. Safe to run alongside the server or other scans.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if cfg.Scan.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Scan.Timeout)
				defer cancel()
			}

			deps, err := openDependencies(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer deps.close(log)

			svc, err := newMailTaskService(cfg, log, deps, nil)
			if err != nil {
				return err
			}

			processed, err := svc.RunDueScan(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d\n", processed)
			return nil
		},
	}
}
