package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file. The file is unmarshalled
// over DefaultConfig, so absent keys keep their defaults and the
// privacy toggles stay strict unless explicitly disabled. The result
// is validated before being returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads a YAML file and applies environment
// variable overrides in the form MCPD_SECTION_FIELD
// (e.g. MCPD_SERVER_LISTEN_ADDRESS). Environment variables take
// precedence over the file.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("MCPD_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("MCPD_SERVER_MAX_CONNECTIONS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.MaxConnections = i
		}
	}
	if val := os.Getenv("MCPD_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := os.Getenv("MCPD_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Privacy overrides
	if val := os.Getenv("MCPD_PRIVACY_BLOCK_EXTERNAL_REQUESTS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Privacy.BlockExternalRequests = b
		}
	}
	if val := os.Getenv("MCPD_PRIVACY_ENFORCE_LOCAL_ONLY"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Privacy.EnforceLocalOnly = b
		}
	}
	if val := os.Getenv("MCPD_PRIVACY_LOG_REQUESTS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Privacy.LogRequests = b
		}
	}
	if val := os.Getenv("MCPD_PRIVACY_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Privacy.RetentionDays = i
		}
	}

	// Logging overrides
	if val := os.Getenv("MCPD_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("MCPD_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	// Metrics overrides
	if val := os.Getenv("MCPD_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("MCPD_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Metrics.ListenAddress = val
	}

	// Audit overrides
	if val := os.Getenv("MCPD_AUDIT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Audit.Enabled = b
		}
	}
	if val := os.Getenv("MCPD_AUDIT_PATH"); val != "" {
		cfg.Audit.Path = val
	}
}
