package backends

import (
	"strings"
	"time"
)

// Backend type identifiers. The factory switch over these is closed:
// adding a type means adding a case here.
const (
	TypeOpenAICompatible = "openai-compatible"
	TypeOllama           = "ollama"
	TypeEcho             = "echo"
)

// New constructs a backend handle from an opaque registration config.
// The config map is the backend-specific key/value bag carried on a
// model registration; recognized keys for HTTP types are base_url
// (required), model, timeout and capabilities (comma-separated).
//
// An unknown backend type or an invalid config returns a *ConfigError
// and no handle is constructed.
func New(backendType, name string, config map[string]string) (Backend, error) {
	switch backendType {
	case TypeOpenAICompatible, TypeOllama:
		cfg := HTTPConfig{
			Name:    name,
			BaseURL: config["base_url"],
			Model:   config["model"],
		}
		if raw := config["timeout"]; raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, &ConfigError{Backend: name, Field: "timeout", Message: err.Error()}
			}
			cfg.Timeout = d
		}
		if raw := config["capabilities"]; raw != "" {
			caps, err := parseCapabilities(name, raw)
			if err != nil {
				return nil, err
			}
			cfg.Capabilities = caps
		}
		return NewHTTPBackend(cfg)

	case TypeEcho:
		return NewEchoBackend(name), nil

	default:
		return nil, &ConfigError{Backend: name, Field: "backend_type", Message: "unknown type " + backendType}
	}
}

func parseCapabilities(name, raw string) ([]Capability, error) {
	parts := strings.Split(raw, ",")
	caps := make([]Capability, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		c, ok := ParseCapability(p)
		if !ok {
			return nil, &ConfigError{Backend: name, Field: "capabilities", Message: "unknown capability " + p}
		}
		caps = append(caps, c)
	}
	if len(caps) == 0 {
		return nil, &ConfigError{Backend: name, Field: "capabilities", Message: "empty capability list"}
	}
	return caps, nil
}
