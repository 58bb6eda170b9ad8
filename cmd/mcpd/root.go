package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mcpd",
	Short: "mcpd - local model control plane",
	Long: `mcpd is a local-first control plane for AI inference backends.

It speaks a newline-delimited JSON protocol over TCP, providing:
  - Tenant-scoped registration and discovery of inference backends
  - Completion, chat and embedding dispatch to local runtimes
  - Privacy enforcement: external destinations blocked by default
  - Anonymized structured logging and an optional audit log`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "mcpd.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
