package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate checks a Config for errors the daemon cannot run with.
func Validate(cfg *Config) error {
	var errs []string

	if err := validateAddress(cfg.Server.ListenAddress); err != nil {
		errs = append(errs, fmt.Sprintf("server.listen_address: %v", err))
	}
	if cfg.Server.MaxConnections < 0 {
		errs = append(errs, "server.max_connections: must not be negative")
	}
	if cfg.Server.MaxLineBytes <= 0 {
		errs = append(errs, "server.max_line_bytes: must be positive")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "server.shutdown_timeout: must be positive")
	}

	if cfg.Privacy.RetentionDays < 0 {
		errs = append(errs, "privacy.retention_days: must not be negative")
	}
	for i, host := range cfg.Privacy.AllowedHosts {
		if strings.TrimSpace(host) == "" {
			errs = append(errs, fmt.Sprintf("privacy.allowed_hosts[%d]: empty host", i))
			continue
		}
		if strings.Contains(host, "://") {
			if _, err := url.Parse(host); err != nil {
				errs = append(errs, fmt.Sprintf("privacy.allowed_hosts[%d]: %v", i, err))
			}
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("logging.format: unknown format %q", cfg.Logging.Format))
	}

	if cfg.Metrics.Enabled {
		if err := validateAddress(cfg.Metrics.ListenAddress); err != nil {
			errs = append(errs, fmt.Sprintf("metrics.listen_address: %v", err))
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, "metrics.path: must start with /")
		}
	}

	if cfg.Audit.Enabled {
		if cfg.Audit.Path == "" {
			errs = append(errs, "audit.path: required when audit is enabled")
		}
		if cfg.Audit.RetentionSchedule == "" {
			errs = append(errs, "audit.retention_schedule: required when audit is enabled")
		}
		if cfg.Audit.QueryLimit <= 0 {
			errs = append(errs, "audit.query_limit: must be positive")
		}
	}

	if cfg.Health.SweepSchedule == "" {
		errs = append(errs, "health.sweep_schedule: required")
	}
	if cfg.Health.CheckTimeout <= 0 {
		errs = append(errs, "health.check_timeout: must be positive")
	}

	seen := make(map[string]bool, len(cfg.Tenants))
	for i, t := range cfg.Tenants {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("tenants[%d]: id is required", i))
			continue
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Sprintf("tenants[%d]: duplicate id %q", i, t.ID))
		}
		seen[t.ID] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address is required")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("not a host:port address: %w", err)
	}
	if host == "" {
		return fmt.Errorf("host is required")
	}
	if port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}
