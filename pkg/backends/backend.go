// Package backends defines the opaque inference backend handle and the
// local adapters that implement it.
//
// A backend is whatever sits behind a model registration: a llama.cpp
// or Ollama style HTTP runtime on localhost, or the in-process echo
// backend used by tests and smoke checks. The control plane treats
// backend failures as opaque; it never retries on the backend's behalf.
package backends

import "context"

// Capability names one kind of inference a backend supports.
type Capability string

const (
	CapabilityCompletion Capability = "completion"
	CapabilityChat       Capability = "chat"
	CapabilityEmbedding  Capability = "embedding"
)

// ParseCapability validates a capability string.
func ParseCapability(s string) (Capability, bool) {
	switch Capability(s) {
	case CapabilityCompletion, CapabilityChat, CapabilityEmbedding:
		return Capability(s), true
	}
	return "", false
}

// Backend is the handle the registry stores per registered model.
//
// All inference methods accept a context for cancellation and must
// return promptly once it is cancelled; a connection tearing down
// cancels its in-flight backend calls this way.
type Backend interface {
	// Completion runs single-prompt text generation.
	Completion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Chat runs multi-turn generation over a message history.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Embedding produces a vector embedding for a single text input.
	Embedding(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)

	// HealthCheck verifies the backend is reachable and responding.
	// A nil return means healthy.
	HealthCheck(ctx context.Context) error

	// Name returns the backend's configured name.
	Name() string

	// Type returns the backend type (e.g. "openai-compatible", "echo").
	Type() string

	// Capabilities returns the inference kinds this backend supports.
	Capabilities() []Capability

	// Close releases backend resources. The handle must not be used
	// after Close.
	Close() error
}
