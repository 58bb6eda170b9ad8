// Package privacy implements the local-only enforcement policy.
//
// Every code path that could move data outside the local environment
// (backend configuration, inference payloads, outbound URLs, log and
// error output) funnels through an Enforcer. The policy is a plain
// configuration value constructed at startup (and hot-swappable on
// config reload); there is no hidden process-global state, which keeps
// every check a pure function of its inputs and trivially testable.
//
// The trust boundary is the local network: loopback, link-local and
// RFC1918 addresses pass, everything else is a violation unless the
// host appears on an explicit allow-list. Host classification is done
// by exact address inspection, never by DNS resolution.
package privacy
