package inference

import "fmt"

// AccessDeniedError reports a request whose tenant identity does not
// grant access to the target model. A model that does not exist and a
// model owned by another tenant produce the same error, so existence
// cannot be probed across tenants.
type AccessDeniedError struct {
	// ModelID is the requested model.
	ModelID string
}

// Error implements the error interface.
func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access to model %q denied", e.ModelID)
}

// NotAvailableError reports a model that exists but cannot serve the
// request: its backend is unhealthy or the requested inference kind is
// not in its capability set.
type NotAvailableError struct {
	// ModelID is the requested model.
	ModelID string

	// Reason describes why the model cannot serve the request.
	Reason string
}

// Error implements the error interface.
func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("model %q not available: %s", e.ModelID, e.Reason)
}
