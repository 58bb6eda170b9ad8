// Package server accepts client connections and drives the protocol
// handler over them.
//
// The transport is newline-delimited JSON over TCP. Each accepted
// connection gets its own goroutine reading one message per line,
// feeding it to the handler and writing the single reply line back.
// A read or write error ends that connection only; registry state and
// other connections are unaffected.
//
// Tenant identity is resolved once per connection: a pluggable
// principal function extracts an opaque principal from the connection
// and the configured resolver maps it to a tenant. A connection whose
// principal does not resolve is still served, but every request on it
// fails the handler's tenant gate.
package server
