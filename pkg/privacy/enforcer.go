package privacy

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Config holds the privacy policy toggles. The zero value disables
// everything; use DefaultConfig for the shipped defaults, which enforce
// strict local-only operation.
type Config struct {
	// BlockExternalRequests rejects any outbound URL whose host is not
	// local or allow-listed.
	BlockExternalRequests bool `yaml:"block_external_requests"`

	// EnforceLocalOnly rejects backend configurations and inference
	// payloads that reference non-local URLs.
	EnforceLocalOnly bool `yaml:"enforce_local_only"`

	// AnonymizeLogs redacts email, SSN and credit-card shaped
	// substrings from log output.
	AnonymizeLogs bool `yaml:"anonymize_logs"`

	// AnonymizeErrors replaces filesystem paths and URLs in error
	// messages with fixed markers.
	AnonymizeErrors bool `yaml:"anonymize_errors"`

	// AllowedHosts are hosts exempt from the local-only rule
	// (exact match on the URL host, without port).
	AllowedHosts []string `yaml:"allowed_hosts"`

	// LogRequests enables the audit request log.
	LogRequests bool `yaml:"log_requests"`

	// RetentionDays bounds how long audit entries are kept.
	RetentionDays int `yaml:"retention_days"`
}

// DefaultConfig returns the strict local-only policy.
func DefaultConfig() Config {
	return Config{
		BlockExternalRequests: true,
		EnforceLocalOnly:      true,
		AnonymizeLogs:         true,
		AnonymizeErrors:       true,
		LogRequests:           false,
		RetentionDays:         30,
	}
}

// Status is a read-only snapshot of the active policy, reported by the
// privacy/status protocol method.
type Status struct {
	BlockExternalRequests bool `json:"block_external_requests"`
	EnforceLocalOnly      bool `json:"enforce_local_only"`
	AnonymizeLogs         bool `json:"anonymize_logs"`
	AnonymizeErrors       bool `json:"anonymize_errors"`
	AllowedHostCount      int  `json:"allowed_host_count"`
	LogRequests           bool `json:"log_requests"`
	RetentionDays         int  `json:"retention_days"`
}

// urlPattern finds URL-shaped substrings in free text. It is
// deliberately loose: anything scheme-prefixed that could carry data
// off-host counts.
var urlPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s"'<>\]\)]+`)

// Enforcer applies the privacy policy. All checks are pure functions of
// the input and the current configuration; none perform I/O.
//
// The configuration may be swapped at runtime (config hot reload); a
// check in flight observes either the old or the new policy, never a
// mix.
type Enforcer struct {
	mu      sync.RWMutex
	cfg     Config
	allowed map[string]struct{}
}

// NewEnforcer creates an Enforcer over the given policy.
func NewEnforcer(cfg Config) *Enforcer {
	e := &Enforcer{}
	e.Update(cfg)
	return e
}

// Update atomically replaces the active policy.
func (e *Enforcer) Update(cfg Config) {
	allowed := make(map[string]struct{}, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			allowed[h] = struct{}{}
		}
	}

	e.mu.Lock()
	e.cfg = cfg
	e.allowed = allowed
	e.mu.Unlock()
}

// Config returns a snapshot of the active policy.
func (e *Enforcer) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg := e.cfg
	cfg.AllowedHosts = append([]string(nil), e.cfg.AllowedHosts...)
	return cfg
}

// Status reports the current value of every policy toggle.
func (e *Enforcer) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		BlockExternalRequests: e.cfg.BlockExternalRequests,
		EnforceLocalOnly:      e.cfg.EnforceLocalOnly,
		AnonymizeLogs:         e.cfg.AnonymizeLogs,
		AnonymizeErrors:       e.cfg.AnonymizeErrors,
		AllowedHostCount:      len(e.allowed),
		LogRequests:           e.cfg.LogRequests,
		RetentionDays:         e.cfg.RetentionDays,
	}
}

// ValidateExternalRequest checks that rawURL targets the local
// environment. It returns a *ViolationError when the host is neither a
// local address nor allow-listed, unless external blocking is disabled.
func (e *Enforcer) ValidateExternalRequest(rawURL string) error {
	e.mu.RLock()
	blocking := e.cfg.BlockExternalRequests
	e.mu.RUnlock()

	if !blocking {
		return nil
	}

	host, err := hostOf(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if e.hostAllowed(host) {
		return nil
	}
	return &ViolationError{Rule: RuleExternalRequest, Host: host}
}

// ValidateModelConfig scans config values for URL-shaped strings and
// applies the local-only rule to each. It fails fast on the first
// non-local, non-allow-listed URL; key order is made deterministic so
// the reported violation is stable.
func (e *Enforcer) ValidateModelConfig(config map[string]string) error {
	e.mu.RLock()
	enforce := e.cfg.EnforceLocalOnly
	e.mu.RUnlock()

	if !enforce {
		return nil
	}

	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, raw := range urlPattern.FindAllString(config[k], -1) {
			host, err := hostOf(raw)
			if err != nil {
				continue
			}
			if !e.hostAllowed(host) {
				return &ViolationError{Rule: RuleModelConfig, Host: host, Detail: "config key " + k}
			}
		}
	}
	return nil
}

// ValidateInferenceRequest scans the prompt and every chat message
// content for URL-shaped substrings and applies the local-only rule.
// A single disallowed URL anywhere fails the whole request.
func (e *Enforcer) ValidateInferenceRequest(prompt string, messages []string) error {
	e.mu.RLock()
	enforce := e.cfg.EnforceLocalOnly
	e.mu.RUnlock()

	if !enforce {
		return nil
	}

	if err := e.scanText(prompt, "prompt"); err != nil {
		return err
	}
	for i, content := range messages {
		if err := e.scanText(content, fmt.Sprintf("message %d", i)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Enforcer) scanText(text, where string) error {
	for _, raw := range urlPattern.FindAllString(text, -1) {
		host, err := hostOf(raw)
		if err != nil {
			continue
		}
		if !e.hostAllowed(host) {
			return &ViolationError{Rule: RulePromptURL, Host: host, Detail: where}
		}
	}
	return nil
}

// hostAllowed reports whether host is local or allow-listed.
func (e *Enforcer) hostAllowed(host string) bool {
	if isLocalHost(host) {
		return true
	}
	e.mu.RLock()
	_, ok := e.allowed[strings.ToLower(host)]
	e.mu.RUnlock()
	return ok
}

// hostOf extracts the host (without port) from a raw URL. Bare hosts
// without a scheme are accepted, matching how they appear in config
// values.
func hostOf(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return host, nil
}

// isLocalHost classifies a host as inside the local trust boundary.
// Classification is purely syntactic: literal IPs are checked against
// the loopback, link-local and private ranges; hostnames are accepted
// only for the well-known loopback names. No DNS lookup is performed.
func isLocalHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
