package privacy

import (
	"errors"
	"fmt"
)

// Violation rule identifiers. They name the check that rejected the
// input and surface in protocol error data.
const (
	RuleExternalRequest = "external_request_blocked"
	RuleModelConfig     = "external_url_not_allowed"
	RulePromptURL       = "external_url_in_prompt"
)

// ViolationError reports a privacy policy violation.
// The offending host is carried separately so callers can log it
// through the sanitizer rather than embedding it in free text.
type ViolationError struct {
	// Rule is the violated rule identifier (Rule* constants).
	Rule string

	// Host is the non-local host that triggered the violation.
	Host string

	// Detail describes where the host was found (config key, message
	// index, etc.).
	Detail string
}

// Error implements the error interface.
func (e *ViolationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("privacy violation (%s): host %q not allowed: %s", e.Rule, e.Host, e.Detail)
	}
	return fmt.Sprintf("privacy violation (%s): host %q not allowed", e.Rule, e.Host)
}

// IsViolation reports whether err is a privacy policy violation.
func IsViolation(err error) bool {
	var v *ViolationError
	return errors.As(err, &v)
}
