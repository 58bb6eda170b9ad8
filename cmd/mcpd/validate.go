package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"localforge/mcpd/pkg/cli"
	"localforge/mcpd/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file without starting the daemon.

Examples:
  # Validate the default config
  mcpd validate

  # Validate a specific file
  mcpd validate --config /etc/mcpd/mcpd.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
	fmt.Printf("  Listen address:  %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  External blocks: %v\n", cfg.Privacy.BlockExternalRequests)
	fmt.Printf("  Local-only:      %v\n", cfg.Privacy.EnforceLocalOnly)
	fmt.Printf("  Allowed hosts:   %d\n", len(cfg.Privacy.AllowedHosts))
	fmt.Printf("  Tenants:         %d\n", len(cfg.Tenants))
	if cfg.Audit.Enabled && cfg.Privacy.LogRequests {
		fmt.Printf("  Audit log:       %s (retention %dd)\n", cfg.Audit.Path, cfg.Privacy.RetentionDays)
	} else {
		fmt.Println("  Audit log:       disabled")
	}
	return nil
}
