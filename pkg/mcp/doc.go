// Package mcp implements the model control protocol: newline-delimited
// JSON envelopes carrying requests, responses and errors between a
// client and the local control plane.
//
// The package has two halves. Handler is the server side: it parses one
// raw line, dispatches to the registry and inference services, and
// always produces exactly one terminal envelope, a response or an
// error, per inbound request, whatever happens inside the handler.
// Client is the caller side: it correlates asynchronous replies to
// in-flight requests purely by id, never by arrival order, resolving
// each pending call exactly once by reply or by timeout.
package mcp
