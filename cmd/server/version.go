package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version   = "dev"
	gitCommit = "none"
	buildTime = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mailsched %s\n", version)
			fmt.Fprintf(out, "  commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "  built:      %s\n", buildTime)
			fmt.Fprintf(out, "  go version: %s\n", runtime.Version())
		},
	}
}
