// mcpd is a local-first control plane for AI inference backends.
//
// It exposes a newline-delimited JSON protocol over TCP for
// registering, discovering and invoking inference backends, with
// tenant isolation and strict privacy enforcement: external network
// destinations are blocked and log output is anonymized by default.
//
// Usage:
//
//	# Start the daemon with default configuration
//	mcpd run
//
//	# Start with a custom configuration file
//	mcpd run --config /etc/mcpd/mcpd.yaml
//
//	# Check a configuration file without starting
//	mcpd validate
//
//	# Inspect the request audit log
//	mcpd audit --limit 50
//
//	# Show version information
//	mcpd version
package main

func main() {
	Execute()
}
