package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"localforge/mcpd/pkg/audit"
	"localforge/mcpd/pkg/cli"
	"localforge/mcpd/pkg/config"
)

var auditFlags struct {
	limit  int
	format string
	prune  bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the request audit log",
	Long: `Query the daemon's request audit log.

The audit log records one row per handled protocol request (method,
tenant, model, outcome, duration). Payloads are never stored.

Examples:
  # Show the most recent entries
  mcpd audit --limit 50

  # Machine-readable output
  mcpd audit --format json

  # Apply the retention policy now
  mcpd audit --prune`,
	RunE: auditLog,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().IntVar(&auditFlags.limit, "limit", 20, "maximum entries to show")
	auditCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json")
	auditCmd.Flags().BoolVar(&auditFlags.prune, "prune", false, "apply the retention policy and exit")
}

func auditLog(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	auditCfg := audit.DefaultConfig()
	auditCfg.Path = cfg.Audit.Path
	auditCfg.QueryLimit = cfg.Audit.QueryLimit

	store, err := audit.NewStore(auditCfg)
	if err != nil {
		return cli.NewCommandError("audit", fmt.Errorf("failed to open audit store: %w", err))
	}
	defer store.Close()

	ctx := context.Background()

	if auditFlags.prune {
		retention := audit.NewRetention(store, "", cfg.Privacy.RetentionDays)
		deleted, err := retention.RunNow(ctx)
		if err != nil {
			return cli.NewCommandError("audit", err)
		}
		fmt.Printf("✓ Pruned %d entries older than %d days\n", deleted, cfg.Privacy.RetentionDays)
		return nil
	}

	entries, err := store.Recent(ctx, auditFlags.limit)
	if err != nil {
		return cli.NewCommandError("audit", err)
	}

	if auditFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, entries)
	}

	if len(entries) == 0 {
		fmt.Println("No audit entries.")
		return nil
	}
	for _, e := range entries {
		outcome := e.Status
		if e.Code != 0 {
			outcome = fmt.Sprintf("%s (%d)", e.Status, e.Code)
		}
		tenantID := e.TenantID
		if tenantID == "" {
			tenantID = "admin"
		}
		fmt.Printf("%s  %-22s  tenant=%-10s  model=%-20s  %-14s  %s\n",
			e.RecordedAt.Format("2006-01-02 15:04:05"),
			e.Method, tenantID, e.ModelID, outcome, e.Duration)
	}
	return nil
}
