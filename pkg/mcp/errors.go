package mcp

import "fmt"

// Code is a protocol error code. The values are stable wire contract;
// the -327xx range mirrors JSON-RPC, the -320xx range is specific to
// the model control plane.
type Code int

const (
	// CodeParseError means the raw line was not a valid envelope.
	CodeParseError Code = -32700

	// CodeInvalidRequest means the envelope was structurally invalid
	// (wrong type, missing method).
	CodeInvalidRequest Code = -32600

	// CodeMethodNotFound means the method is not in the dispatch table.
	CodeMethodNotFound Code = -32601

	// CodeInvalidParams means the params failed decoding or validation,
	// including privacy policy violations.
	CodeInvalidParams Code = -32602

	// CodeInternalError covers everything the taxonomy does not name.
	CodeInternalError Code = -32603

	// CodeModelNotAvailable means the model is unknown, unhealthy or
	// lacks the requested capability.
	CodeModelNotAvailable Code = -32001

	// CodeContextTooLong means the payload exceeds the model's context
	// window.
	CodeContextTooLong Code = -32002

	// CodeRateLimitExceeded means the backend rejected the call for
	// rate limiting.
	CodeRateLimitExceeded Code = -32003

	// CodeTenantAccessDenied means the caller's tenant identity does
	// not grant the operation.
	CodeTenantAccessDenied Code = -32004
)

// Error is a typed protocol error. Handlers raise it (or have their
// failures mapped onto it) and it serializes directly into an error
// envelope, carrying its code, message and auxiliary data verbatim.
type Error struct {
	// Code is the protocol error code.
	Code Code `json:"code"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Data carries structured detail (violated rule, error type name).
	Data map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// NewError creates a protocol error.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithData returns a copy of the error carrying the given data entry.
func (e *Error) WithData(key string, value any) *Error {
	out := &Error{Code: e.Code, Message: e.Message, Data: make(map[string]any, len(e.Data)+1)}
	for k, v := range e.Data {
		out.Data[k] = v
	}
	out.Data[key] = value
	return out
}
