package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8700"
	DefaultMaxConnections  = 128
	DefaultMaxLineBytes    = 1 << 20 // 1MB
	DefaultIdleTimeout     = 5 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second

	// Privacy defaults (strict)
	DefaultRetentionDays = 30

	// Logging defaults
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "json"

	// Metrics defaults
	DefaultMetricsEnabled = true
	DefaultMetricsAddress = "127.0.0.1:9090"
	DefaultMetricsPath    = "/metrics"

	// Audit defaults
	DefaultAuditPath         = "data/audit.db"
	DefaultRetentionSchedule = "0 3 * * *"
	DefaultAuditQueryLimit   = 100

	// Health defaults
	DefaultSweepSchedule      = "@every 30s"
	DefaultHealthCheckTimeout = 5 * time.Second
)

// DefaultConfig returns the configuration the daemon runs with when no
// file is supplied. Loading unmarshals the file over this value, so an
// absent key keeps its default; in particular the privacy toggles stay
// strict unless the file disables them explicitly.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:   DefaultListenAddress,
			MaxConnections:  DefaultMaxConnections,
			MaxLineBytes:    DefaultMaxLineBytes,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Privacy: PrivacyConfig{
			BlockExternalRequests: true,
			EnforceLocalOnly:      true,
			AnonymizeLogs:         true,
			AnonymizeErrors:       true,
			LogRequests:           false,
			RetentionDays:         DefaultRetentionDays,
		},
		Logging: LoggingConfig{
			Level:  DefaultLoggingLevel,
			Format: DefaultLoggingFormat,
		},
		Metrics: MetricsConfig{
			Enabled:       DefaultMetricsEnabled,
			ListenAddress: DefaultMetricsAddress,
			Path:          DefaultMetricsPath,
		},
		Audit: AuditConfig{
			Enabled:           false,
			Path:              DefaultAuditPath,
			RetentionSchedule: DefaultRetentionSchedule,
			QueryLimit:        DefaultAuditQueryLimit,
		},
		Health: HealthConfig{
			SweepSchedule: DefaultSweepSchedule,
			CheckTimeout:  DefaultHealthCheckTimeout,
		},
	}
}

// ApplyDefaults fills zero values on a programmatically built Config.
// It does not touch booleans; those carry meaning at false.
func ApplyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = def.Server.ListenAddress
	}
	if cfg.Server.MaxLineBytes == 0 {
		cfg.Server.MaxLineBytes = def.Server.MaxLineBytes
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.Privacy.RetentionDays == 0 {
		cfg.Privacy.RetentionDays = def.Privacy.RetentionDays
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = def.Metrics.ListenAddress
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = def.Metrics.Path
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = def.Audit.Path
	}
	if cfg.Audit.RetentionSchedule == "" {
		cfg.Audit.RetentionSchedule = def.Audit.RetentionSchedule
	}
	if cfg.Audit.QueryLimit == 0 {
		cfg.Audit.QueryLimit = def.Audit.QueryLimit
	}
	if cfg.Health.SweepSchedule == "" {
		cfg.Health.SweepSchedule = def.Health.SweepSchedule
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = def.Health.CheckTimeout
	}
}
