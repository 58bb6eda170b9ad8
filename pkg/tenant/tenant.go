// Package tenant defines the tenant identity model and the resolver
// interface through which an external identity layer supplies it.
//
// Every registry record and every inference call in mcpd is scoped to
// exactly one tenant. The daemon itself never issues or verifies
// credentials; it receives an already-resolved Info per connection and
// threads it through request contexts. An empty tenant ID denotes an
// administrative context and bypasses ownership checks; deciding who
// may present an empty ID is the resolver's responsibility, not ours.
package tenant

import "context"

// Info is the resolved identity of a tenant.
// It is immutable for the lifetime of a request; the core never
// mutates it.
type Info struct {
	// ID is the stable tenant identifier used to namespace registry
	// records. Empty for admin contexts.
	ID string `json:"id"`

	// Slug is a short URL-safe handle for the tenant.
	Slug string `json:"slug"`

	// Name is the human-readable tenant name.
	Name string `json:"name"`

	// Active reports whether the tenant may issue requests. Requests
	// for an inactive tenant are rejected before reaching any business
	// method.
	Active bool `json:"active"`
}

// IsAdmin reports whether this identity carries administrative scope.
func (i Info) IsAdmin() bool {
	return i.ID == ""
}

// Resolver supplies tenant identities. Implementations live outside the
// core (CLI flags, an auth sidecar, test fixtures).
type Resolver interface {
	// Resolve maps an opaque principal (connection token, header value)
	// to a tenant identity. An unknown principal returns an error.
	Resolve(ctx context.Context, principal string) (Info, error)
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying the tenant identity.
func NewContext(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// FromContext extracts the tenant identity from ctx.
// The second return is false when no identity was attached.
func FromContext(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(ctxKey{}).(Info)
	return info, ok
}
