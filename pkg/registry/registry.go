package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"localforge/mcpd/pkg/backends"
	"localforge/mcpd/pkg/privacy"
)

// RegisterRequest carries the parameters of one model registration.
type RegisterRequest struct {
	// Name is the model name, unique within the registering tenant.
	Name string `json:"name"`

	// BackendType selects the adapter (see backends.New).
	BackendType string `json:"backend_type"`

	// Config is the opaque backend configuration. It is
	// privacy-validated before any backend is constructed.
	Config map[string]string `json:"config,omitempty"`
}

// Factory constructs a backend handle for a registration. Injectable
// so tests can register fakes; defaults to backends.New.
type Factory func(backendType, name string, config map[string]string) (backends.Backend, error)

// Registry is the tenant-scoped model catalog.
//
// Registration and unregistration serialize on one mutex covering
// their check-then-write sequences; reads take the read side and
// return copies. The mutex is never held across backend I/O.
type Registry struct {
	enforcer *privacy.Enforcer
	factory  Factory
	logger   *slog.Logger

	mu     sync.RWMutex
	models map[string]*entry

	// healthCheckTimeout bounds each backend health probe.
	healthCheckTimeout time.Duration
}

type entry struct {
	info    ModelInfo
	backend backends.Backend
}

// Option configures a Registry.
type Option func(*Registry)

// WithFactory overrides the backend factory.
func WithFactory(f Factory) Option {
	return func(r *Registry) { r.factory = f }
}

// WithHealthCheckTimeout overrides the per-backend probe timeout.
func WithHealthCheckTimeout(d time.Duration) Option {
	return func(r *Registry) { r.healthCheckTimeout = d }
}

// New creates an empty Registry governed by the given privacy policy.
func New(enforcer *privacy.Enforcer, opts ...Option) *Registry {
	r := &Registry{
		enforcer:           enforcer,
		factory:            backends.New,
		logger:             slog.Default().With("component", "registry"),
		models:             make(map[string]*entry),
		healthCheckTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates the request against the privacy policy, constructs
// the backend handle and stores the model under the tenant's namespace.
// On any failure nothing is stored. The returned id is
// {tenant}_{slug(name)}; two tenants registering the same name get
// distinct ids.
func (r *Registry) Register(ctx context.Context, req RegisterRequest, tenantID string) (string, error) {
	if req.Name == "" {
		return "", fmt.Errorf("model name is required")
	}
	if err := r.enforcer.ValidateModelConfig(req.Config); err != nil {
		return "", err
	}

	id := ModelID(tenantID, req.Name)
	if id == "" || id == tenantID+"_" {
		return "", fmt.Errorf("model name %q yields an empty id", req.Name)
	}

	// Fast-fail before paying for backend construction. The
	// authoritative check happens again under the write lock.
	r.mu.RLock()
	_, exists := r.models[id]
	r.mu.RUnlock()
	if exists {
		return "", &DuplicateNameError{TenantID: tenantID, Name: req.Name}
	}

	backend, err := r.factory(req.BackendType, req.Name, req.Config)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	info := ModelInfo{
		ID:           id,
		Name:         req.Name,
		BackendType:  req.BackendType,
		TenantID:     tenantID,
		Capabilities: backend.Capabilities(),
		Status:       StatusAvailable,
		Config:       req.Config,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.mu.Lock()
	if _, exists := r.models[id]; exists {
		r.mu.Unlock()
		backend.Close()
		return "", &DuplicateNameError{TenantID: tenantID, Name: req.Name}
	}
	r.models[id] = &entry{info: info, backend: backend}
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "model registered",
		"model_id", id,
		"backend_type", req.BackendType,
		"tenant", tenantID,
	)
	return id, nil
}

// Unregister removes a model and closes its backend handle. A caller
// that does not own the model gets an OwnershipError and the model
// stays registered; an admin context (empty tenantID) bypasses the
// ownership check.
func (r *Registry) Unregister(ctx context.Context, modelID, tenantID string) error {
	r.mu.Lock()
	ent, ok := r.models[modelID]
	if !ok {
		r.mu.Unlock()
		return &NotFoundError{ID: modelID}
	}
	if tenantID != "" && ent.info.TenantID != tenantID {
		r.mu.Unlock()
		return &OwnershipError{ID: modelID, TenantID: tenantID}
	}
	delete(r.models, modelID)
	r.mu.Unlock()

	// Close outside the lock; backend teardown may block.
	if err := ent.backend.Close(); err != nil {
		r.logger.WarnContext(ctx, "backend close failed", "model_id", modelID, "error", err)
	}

	r.logger.InfoContext(ctx, "model unregistered", "model_id", modelID, "tenant", tenantID)
	return nil
}

// Get returns a copy of the model record, or false when the model does
// not exist or is owned by a different tenant. The two cases are
// deliberately indistinguishable so existence cannot be probed across
// tenants. An empty tenantID (admin) sees everything.
func (r *Registry) Get(modelID, tenantID string) (ModelInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ent, ok := r.models[modelID]
	if !ok || !visibleTo(ent.info, tenantID) {
		return ModelInfo{}, false
	}
	return ent.info.clone(), true
}

// GetBackend returns the backend handle under the same visibility rule
// as Get.
func (r *Registry) GetBackend(modelID, tenantID string) (backends.Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ent, ok := r.models[modelID]
	if !ok || !visibleTo(ent.info, tenantID) {
		return nil, false
	}
	return ent.backend, true
}

// List returns the records visible to tenantID, sorted by id.
// An empty tenantID lists every record.
func (r *Registry) List(tenantID string) []ModelInfo {
	r.mu.RLock()
	out := make([]ModelInfo, 0, len(r.models))
	for _, ent := range r.models {
		if visibleTo(ent.info, tenantID) {
			out = append(out, ent.info.clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// HealthCheckAll probes every backend and returns a map of model id to
// health. Callers holding a tenant identity must use HealthCheck
// instead; this is the admin and sweeper entry point.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]bool {
	return r.HealthCheck(ctx, "")
}

// HealthCheck probes the backends visible to tenantID under the same
// visibility rule as Get and List, so the result never names a foreign
// model. A backend that errors, panics or exceeds the probe timeout
// maps to false; the aggregate call itself never fails. Probed model
// statuses are updated from the results, with a panicking backend
// marked as errored rather than merely unavailable.
func (r *Registry) HealthCheck(ctx context.Context, tenantID string) map[string]bool {
	// Snapshot handles first; probes run without the lock.
	r.mu.RLock()
	handles := make(map[string]backends.Backend, len(r.models))
	for id, ent := range r.models {
		if visibleTo(ent.info, tenantID) {
			handles[id] = ent.backend
		}
	}
	r.mu.RUnlock()

	results := make(map[string]bool, len(handles))
	panicked := make(map[string]bool)
	for id, backend := range handles {
		healthy, didPanic := r.probe(ctx, id, backend)
		results[id] = healthy
		if didPanic {
			panicked[id] = true
		}
	}

	now := time.Now().UTC()
	r.mu.Lock()
	for id, healthy := range results {
		ent, ok := r.models[id]
		if !ok {
			continue // unregistered during the sweep
		}
		status := StatusAvailable
		switch {
		case panicked[id]:
			status = StatusError
		case !healthy:
			status = StatusUnavailable
		}
		if ent.info.Status != status {
			ent.info.Status = status
			ent.info.UpdatedAt = now
		}
	}
	r.mu.Unlock()

	return results
}

// probe runs one health check, containing panics and bounding runtime.
func (r *Registry) probe(ctx context.Context, id string, backend backends.Backend) (healthy, panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("health check panicked", "model_id", id, "panic", fmt.Sprint(rec))
			healthy = false
			panicked = true
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, r.healthCheckTimeout)
	defer cancel()

	if err := backend.HealthCheck(probeCtx); err != nil {
		r.logger.Debug("health check failed", "model_id", id, "error", err)
		return false, false
	}
	return true, false
}

// Close unregisters everything and closes all backend handles.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.models))
	for id, ent := range r.models {
		entries = append(entries, ent)
		delete(r.models, id)
	}
	r.mu.Unlock()

	for _, ent := range entries {
		ent.backend.Close()
	}
	return nil
}

// visibleTo implements the tenant visibility rule: admin sees all,
// a tenant sees only its own records.
func visibleTo(info ModelInfo, tenantID string) bool {
	return tenantID == "" || info.TenantID == tenantID
}
