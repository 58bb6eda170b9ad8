package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"localforge/mcpd/pkg/audit"
	"localforge/mcpd/pkg/cli"
	"localforge/mcpd/pkg/config"
	"localforge/mcpd/pkg/inference"
	"localforge/mcpd/pkg/mcp"
	"localforge/mcpd/pkg/privacy"
	"localforge/mcpd/pkg/registry"
	"localforge/mcpd/pkg/server"
	"localforge/mcpd/pkg/telemetry/logging"
	"localforge/mcpd/pkg/telemetry/metrics"
	"localforge/mcpd/pkg/tenant"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the mcpd daemon",
	Long: `Start the mcpd daemon with the specified configuration.

The daemon listens on the configured TCP address for newline-delimited
JSON protocol messages and dispatches them to registered inference
backends under the privacy policy.

Examples:
  # Start with default config
  mcpd run

  # Start with custom config
  mcpd run --config /etc/mcpd/mcpd.yaml

  # Override listen address
  mcpd run --listen 127.0.0.1:9700

  # Validate config without starting
  mcpd run --dry-run`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the daemon")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	// The enforcer exists before the logger so log output can route
	// through its sanitizer.
	enforcer := privacy.NewEnforcer(cfg.Privacy.Enforcer())

	logOpts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Privacy.AnonymizeLogs {
		logOpts.Sanitize = enforcer.SanitizeLogMessage
	}
	logger, err := logging.Setup(logOpts)
	if err != nil {
		return cli.NewConfigError("logging", err.Error())
	}

	fmt.Printf("mcpd v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx := cli.SetupSignalHandler()

	reg := registry.New(enforcer, registry.WithHealthCheckTimeout(cfg.Health.CheckTimeout))
	defer reg.Close()
	svc := inference.NewService(reg, enforcer)

	var handlerOpts []mcp.HandlerOption

	// Metrics
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(nil)
		handlerOpts = append(handlerOpts, mcp.WithObserver(collector))

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, collector.Handler())
		metricsSrv := &http.Server{Addr: cfg.Metrics.ListenAddress, Handler: mux}
		go func() {
			logger.Info("metrics listener started", "address", cfg.Metrics.ListenAddress, "path", cfg.Metrics.Path)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		defer metricsSrv.Close()

		fmt.Printf("✓ Metrics on http://%s%s\n", cfg.Metrics.ListenAddress, cfg.Metrics.Path)
	}

	// Audit log: requires both the audit section and the privacy
	// request-logging toggle.
	if cfg.Audit.Enabled && cfg.Privacy.LogRequests {
		auditCfg := audit.DefaultConfig()
		auditCfg.Path = cfg.Audit.Path
		auditCfg.QueryLimit = cfg.Audit.QueryLimit

		store, err := audit.NewStore(auditCfg)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to open audit store: %w", err))
		}
		defer store.Close()
		handlerOpts = append(handlerOpts, mcp.WithObserver(store))

		retention := audit.NewRetention(store, cfg.Audit.RetentionSchedule, cfg.Privacy.RetentionDays)
		if err := retention.Start(ctx); err != nil {
			return cli.NewCommandError("run", err)
		}
		defer retention.Stop()

		fmt.Printf("✓ Audit log at %s (retention %dd)\n", cfg.Audit.Path, cfg.Privacy.RetentionDays)
	} else if cfg.Audit.Enabled {
		logger.Warn("audit enabled but privacy.log_requests is off; no requests will be recorded")
	}

	handler := mcp.NewHandler(reg, svc, enforcer, handlerOpts...)

	// Health sweeper feeding the metrics gauges.
	sweeper := registry.NewSweeper(reg, cfg.Health.SweepSchedule, func(results map[string]bool) {
		if collector == nil {
			return
		}
		for modelID, healthy := range results {
			collector.SetBackendHealth(modelID, healthy)
		}
		counts := make(map[string]int)
		for _, info := range reg.List("") {
			counts[info.TenantID]++
		}
		for tenantID, n := range counts {
			collector.SetModelCount(tenantID, n)
		}
	})
	if err := sweeper.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer sweeper.Stop()

	// Tenant table
	infos := make([]tenant.Info, 0, len(cfg.Tenants))
	for _, t := range cfg.Tenants {
		infos = append(infos, t.Info())
	}
	resolver := tenant.NewStaticResolver(infos...)

	// Hot reload: only the privacy section applies without restart.
	watcher, err := config.NewWatcher(cfgFile, 0)
	if err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else {
		go watcher.Watch(ctx, func(next *config.Config) {
			enforcer.Update(next.Privacy.Enforcer())
			logger.Info("privacy policy reloaded")
		})
		defer watcher.Stop()
	}

	srv := server.NewServer(server.Config{
		ListenAddress:   cfg.Server.ListenAddress,
		MaxConnections:  cfg.Server.MaxConnections,
		MaxLineBytes:    cfg.Server.MaxLineBytes,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler, resolver)

	fmt.Printf("✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "daemon exited with error")
		return cli.NewCommandError("run", err)
	}
	fmt.Println("✓ Daemon stopped")
	return nil
}
