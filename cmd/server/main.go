// Package main implements the scheduled mail API: an HTTP service that sends
// emails now or at a scheduled time, plus the CLI commands that migrate its
// database and trigger due scans.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
