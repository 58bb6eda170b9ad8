package registry

import "fmt"

// DuplicateNameError reports a registration whose (tenant, name) pair
// is already taken.
type DuplicateNameError struct {
	// TenantID is the namespace the collision occurred in.
	TenantID string

	// Name is the model name already registered.
	Name string
}

// Error implements the error interface.
func (e *DuplicateNameError) Error() string {
	if e.TenantID == "" {
		return fmt.Sprintf("model %q is already registered", e.Name)
	}
	return fmt.Sprintf("model %q is already registered for tenant %q", e.Name, e.TenantID)
}

// NotFoundError reports a lookup for a model id that does not exist
// in the caller's visible namespace.
type NotFoundError struct {
	// ID is the model id that was not found.
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model %q not found", e.ID)
}

// OwnershipError reports a mutation attempted by a tenant that does
// not own the model. It is distinct from NotFoundError: unregistering
// another tenant's model is a visible policy violation, not a silent
// absence, because the caller already proved knowledge of the id.
type OwnershipError struct {
	// ID is the model id.
	ID string

	// TenantID is the caller's identity.
	TenantID string
}

// Error implements the error interface.
func (e *OwnershipError) Error() string {
	return fmt.Sprintf("model %q belongs to a different tenant", e.ID)
}
