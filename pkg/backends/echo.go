package backends

import (
	"context"
	"hash/fnv"
	"strings"
)

// EchoBackend is an in-process backend that reflects its input back.
// It exists for tests, smoke checks and wiring new deployments before
// a real runtime is available.
type EchoBackend struct {
	name string
}

// NewEchoBackend creates an echo backend.
func NewEchoBackend(name string) *EchoBackend {
	return &EchoBackend{name: name}
}

// Name returns the backend's configured name.
func (b *EchoBackend) Name() string { return b.name }

// Type returns "echo".
func (b *EchoBackend) Type() string { return TypeEcho }

// Capabilities returns all inference kinds.
func (b *EchoBackend) Capabilities() []Capability {
	return []Capability{CapabilityCompletion, CapabilityChat, CapabilityEmbedding}
}

// HealthCheck always succeeds.
func (b *EchoBackend) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (b *EchoBackend) Close() error { return nil }

// Completion echoes the prompt.
func (b *EchoBackend) Completion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &CompletionResponse{
		ModelID: req.ModelID,
		Text:    "echo: " + req.Prompt,
		Usage:   usageFor(req.Prompt),
	}, nil
}

// Chat echoes the last message.
func (b *EchoBackend) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var last string
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	return &ChatResponse{
		ModelID: req.ModelID,
		Message: Message{Role: RoleAssistant, Content: "echo: " + last},
		Usage:   usageFor(last),
	}, nil
}

// Embedding produces a deterministic pseudo-embedding of the input.
func (b *EchoBackend) Embedding(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	const dims = 8
	vec := make([]float64, dims)
	h := fnv.New64a()
	h.Write([]byte(req.Input))
	seed := h.Sum64()
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float64(int64(seed>>32)) / float64(1<<31)
	}

	return &EmbeddingResponse{
		ModelID:    req.ModelID,
		Embedding:  vec,
		Dimensions: dims,
		Usage:      usageFor(req.Input),
	}, nil
}

func usageFor(text string) Usage {
	tokens := len(strings.Fields(text))
	return Usage{PromptTokens: tokens, CompletionTokens: tokens, TotalTokens: 2 * tokens}
}
