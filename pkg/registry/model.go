// Package registry is the authoritative, tenant-isolated catalog of
// registered inference backends.
//
// The registry is the only long-lived shared mutable state in the
// control plane. All mutation goes through its methods; callers receive
// copies of records, never references into the internal map. Records
// are namespaced by tenant: two tenants can register the same model
// name and neither can observe the other's records; lookups with a
// foreign tenant identity behave exactly like lookups for a model that
// does not exist.
package registry

import (
	"regexp"
	"strings"
	"time"

	"localforge/mcpd/pkg/backends"
)

// Status is the registry's view of a model's availability.
type Status string

const (
	// StatusAvailable means the backend answered its last health check.
	StatusAvailable Status = "available"

	// StatusUnavailable means the backend failed its last health check.
	StatusUnavailable Status = "unavailable"

	// StatusError means the backend misbehaved (panicked or returned a
	// malformed response) rather than merely being unreachable.
	StatusError Status = "error"
)

// ModelInfo is the metadata stored per registered model.
type ModelInfo struct {
	// ID is globally unique, derived as {tenant_id}_{slug(name)} so a
	// (tenant, name) collision is caught at registration time. Models
	// registered by an admin context have no tenant prefix.
	ID string `json:"id"`

	// Name is the caller-chosen model name, unique per tenant.
	Name string `json:"name"`

	// BackendType identifies the adapter behind this model.
	BackendType string `json:"backend_type"`

	// TenantID is the owning tenant; empty for admin-created entries.
	TenantID string `json:"tenant_id,omitempty"`

	// Capabilities are the inference kinds the backend supports.
	Capabilities []backends.Capability `json:"capabilities"`

	// Status is updated by health sweeps; registration starts a model
	// as available.
	Status Status `json:"status"`

	// Config is the opaque backend-specific configuration the model
	// was registered with.
	Config map[string]string `json:"config,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// clone returns a deep copy so callers cannot mutate registry state
// through a returned record.
func (m ModelInfo) clone() ModelInfo {
	out := m
	out.Capabilities = append([]backends.Capability(nil), m.Capabilities...)
	if m.Config != nil {
		out.Config = make(map[string]string, len(m.Config))
		for k, v := range m.Config {
			out.Config[k] = v
		}
	}
	return out
}

// HasCapability reports whether the model supports kind.
func (m ModelInfo) HasCapability(kind backends.Capability) bool {
	for _, c := range m.Capabilities {
		if c == kind {
			return true
		}
	}
	return false
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives the id component from a model name.
func slugify(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}

// ModelID derives the registry id for a (tenant, name) pair.
func ModelID(tenantID, name string) string {
	slug := slugify(name)
	if tenantID == "" {
		return slug
	}
	return tenantID + "_" + slug
}
