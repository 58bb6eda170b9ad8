package config

import (
	"time"

	"localforge/mcpd/pkg/privacy"
	"localforge/mcpd/pkg/tenant"
)

// Config is the root daemon configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Privacy PrivacyConfig `yaml:"privacy"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Audit   AuditConfig   `yaml:"audit"`
	Health  HealthConfig  `yaml:"health"`
	Tenants []TenantEntry `yaml:"tenants"`
}

// ServerConfig holds the protocol listener settings.
type ServerConfig struct {
	// ListenAddress is the TCP address the daemon binds.
	ListenAddress string `yaml:"listen_address"`

	// MaxConnections caps concurrent client connections (0 = unlimited).
	MaxConnections int `yaml:"max_connections"`

	// MaxLineBytes caps one inbound message line.
	MaxLineBytes int `yaml:"max_line_bytes"`

	// IdleTimeout disconnects silent clients (0 = never).
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds the graceful drain.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PrivacyConfig mirrors the privacy enforcer's settings. All toggles
// default to the strict setting; a config file can only relax them
// explicitly.
type PrivacyConfig struct {
	BlockExternalRequests bool     `yaml:"block_external_requests"`
	EnforceLocalOnly      bool     `yaml:"enforce_local_only"`
	AnonymizeLogs         bool     `yaml:"anonymize_logs"`
	AnonymizeErrors       bool     `yaml:"anonymize_errors"`
	AllowedHosts          []string `yaml:"allowed_hosts"`
	LogRequests           bool     `yaml:"log_requests"`
	RetentionDays         int      `yaml:"retention_days"`
}

// Enforcer converts the section into the privacy package's config.
func (p PrivacyConfig) Enforcer() privacy.Config {
	return privacy.Config{
		BlockExternalRequests: p.BlockExternalRequests,
		EnforceLocalOnly:      p.EnforceLocalOnly,
		AnonymizeLogs:         p.AnonymizeLogs,
		AnonymizeErrors:       p.AnonymizeErrors,
		AllowedHosts:          append([]string(nil), p.AllowedHosts...),
		LogRequests:           p.LogRequests,
		RetentionDays:         p.RetentionDays,
	}
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// MetricsConfig holds the Prometheus side listener settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the HTTP address serving /metrics.
	ListenAddress string `yaml:"listen_address"`

	// Path is the scrape endpoint path.
	Path string `yaml:"path"`
}

// AuditConfig holds the request audit log settings. The audit log is
// written only when both this section and the privacy log_requests
// toggle are on.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the sqlite database file.
	Path string `yaml:"path"`

	// RetentionSchedule is the cron expression for the retention
	// pruner; retention length comes from privacy.retention_days.
	RetentionSchedule string `yaml:"retention_schedule"`

	// QueryLimit caps rows returned by the recent-entries query.
	QueryLimit int `yaml:"query_limit"`
}

// HealthConfig holds the backend health sweep settings.
type HealthConfig struct {
	// SweepSchedule is the cron expression driving periodic backend
	// health checks.
	SweepSchedule string `yaml:"sweep_schedule"`

	// CheckTimeout bounds one backend probe.
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// TenantEntry is one row of the static tenant table backing the
// built-in resolver.
type TenantEntry struct {
	ID     string `yaml:"id"`
	Slug   string `yaml:"slug"`
	Name   string `yaml:"name"`
	Active bool   `yaml:"active"`
}

// Info converts the entry into a tenant identity.
func (t TenantEntry) Info() tenant.Info {
	return tenant.Info{ID: t.ID, Slug: t.Slug, Name: t.Name, Active: t.Active}
}
