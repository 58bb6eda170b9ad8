package backends

import (
	"errors"
	"fmt"
	"time"
)

// BackendError represents a general backend failure.
// It includes the backend name, HTTP status code when applicable, and
// the underlying error.
type BackendError struct {
	// Backend is the name of the backend that failed.
	Backend string

	// StatusCode is the HTTP status code (0 if not applicable).
	StatusCode int

	// Message is the error message.
	Message string

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend %q error (status %d): %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %q error: %s", e.Backend, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents a backend call exceeding its deadline.
type TimeoutError struct {
	// Backend is the name of the backend where the timeout occurred.
	Backend string

	// Timeout is the configured timeout duration.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend %q request timeout after %s", e.Backend, e.Timeout)
}

// ParseError represents a malformed backend response.
type ParseError struct {
	// Backend is the name of the backend that returned the response.
	Backend string

	// Cause is the underlying parse error.
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("backend %q response parse error: %v", e.Backend, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ConfigError represents an invalid backend configuration.
type ConfigError struct {
	// Backend is the backend name (may be empty at construction time).
	Backend string

	// Field is the configuration key that is invalid.
	Field string

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("backend %q configuration error for field %q: %s", e.Backend, e.Field, e.Message)
}

// NotSupportedError reports an inference kind the backend does not
// implement.
type NotSupportedError struct {
	Backend    string
	Capability Capability
}

// Error implements the error interface.
func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("backend %q does not support %s", e.Backend, e.Capability)
}

// IsUnavailable reports whether err indicates the backend could not
// serve the call at all (as opposed to rejecting a bad request).
func IsUnavailable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.StatusCode == 0 || be.StatusCode >= 500
	}
	var te *TimeoutError
	return errors.As(err, &te)
}
