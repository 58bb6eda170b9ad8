package tenant

import (
	"context"
	"fmt"
	"sync"
)

// StaticResolver resolves principals from a fixed in-memory table.
// It backs the CLI's --tenants flag and test fixtures; production
// deployments plug in their own Resolver.
type StaticResolver struct {
	mu      sync.RWMutex
	tenants map[string]Info
}

// NewStaticResolver creates a resolver over the given identities,
// keyed by tenant ID.
func NewStaticResolver(infos ...Info) *StaticResolver {
	r := &StaticResolver{tenants: make(map[string]Info, len(infos))}
	for _, info := range infos {
		r.tenants[info.ID] = info
	}
	return r
}

// Resolve implements Resolver. The principal is the tenant ID itself;
// an empty principal resolves to the admin identity.
func (r *StaticResolver) Resolve(_ context.Context, principal string) (Info, error) {
	if principal == "" {
		return Info{Name: "admin", Active: true}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.tenants[principal]
	if !ok {
		return Info{}, fmt.Errorf("unknown tenant %q", principal)
	}
	return info, nil
}

// Add registers or replaces an identity.
func (r *StaticResolver) Add(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[info.ID] = info
}
