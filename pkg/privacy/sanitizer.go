package privacy

import "regexp"

// Redaction markers. Log redaction uses a single fixed marker; error
// sanitization keeps the kind of the removed token so messages stay
// readable.
const (
	RedactedMarker = "[REDACTED]"
	PathMarker     = "[PATH]"
	URLMarker      = "[URL]"
)

// Sensitive-data shapes. Matching is pattern-based, not semantic: a
// string that merely looks like an SSN is redacted.
var (
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	ssnPattern        = regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`)
	creditCardPattern = regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)

	// Unix-style absolute paths with at least two components, so bare
	// "/" or "/tmp" in prose survive while real file locations do not.
	pathPattern = regexp.MustCompile(`(?:/[\w.@-]+){2,}/?`)
)

// SanitizeLogMessage redacts sensitive-looking substrings (email
// addresses, SSN-shaped and credit-card-shaped digit groups) from text
// destined for logs. When log anonymization is disabled the text is
// returned unchanged.
func (e *Enforcer) SanitizeLogMessage(text string) string {
	e.mu.RLock()
	anonymize := e.cfg.AnonymizeLogs
	e.mu.RUnlock()

	if !anonymize || text == "" {
		return text
	}

	// Email first: an address can contain digit runs that would
	// otherwise be half-eaten by the card pattern.
	text = emailPattern.ReplaceAllString(text, RedactedMarker)
	text = ssnPattern.ReplaceAllString(text, RedactedMarker)
	text = creditCardPattern.ReplaceAllString(text, RedactedMarker)
	return text
}

// SanitizeErrorMessage replaces filesystem-path-shaped and URL-shaped
// substrings in an error message with fixed markers, so surfaced errors
// cannot leak install locations or endpoints. Unchanged when error
// anonymization is disabled.
func (e *Enforcer) SanitizeErrorMessage(text string) string {
	e.mu.RLock()
	anonymize := e.cfg.AnonymizeErrors
	e.mu.RUnlock()

	if !anonymize || text == "" {
		return text
	}

	text = urlPattern.ReplaceAllString(text, URLMarker)
	text = pathPattern.ReplaceAllString(text, PathMarker)
	return text
}
