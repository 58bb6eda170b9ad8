package backends

import "time"

// Message is a single turn in a chat conversation.
type Message struct {
	// Role identifies the sender (system, user, assistant).
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Message role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Usage tracks token consumption for one inference call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionRequest is a single-prompt generation request.
type CompletionRequest struct {
	// ModelID is the registry identifier of the target model.
	ModelID string `json:"model_id"`

	// TenantID is the resolved identity of the caller. Attached by the
	// inference service before validation; a request without it is
	// rejected, never defaulted to public.
	TenantID string `json:"tenant_id,omitempty"`

	// Prompt is the text to complete.
	Prompt string `json:"prompt"`

	// MaxTokens caps the generated length (0 = backend default).
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling randomness.
	Temperature float64 `json:"temperature,omitempty"`

	// Stop sequences halt generation when produced.
	Stop []string `json:"stop,omitempty"`
}

// CompletionResponse is the reply to a CompletionRequest.
type CompletionResponse struct {
	// RequestID is stamped by the inference service.
	RequestID string `json:"request_id"`

	// ModelID is the model that produced the text.
	ModelID string `json:"model_id"`

	// Text is the generated completion.
	Text string `json:"text"`

	// Usage reports token consumption.
	Usage Usage `json:"usage"`

	// CreatedAt is when the response was produced.
	CreatedAt time.Time `json:"created_at"`
}

// ChatRequest is a multi-turn generation request.
type ChatRequest struct {
	ModelID  string `json:"model_id"`
	TenantID string `json:"tenant_id,omitempty"`

	// Messages is the full conversation history; every message's
	// content is privacy-validated, not only the latest.
	Messages []Message `json:"messages"`

	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// ChatResponse is the reply to a ChatRequest.
type ChatResponse struct {
	RequestID string    `json:"request_id"`
	ModelID   string    `json:"model_id"`
	Message   Message   `json:"message"`
	Usage     Usage     `json:"usage"`
	CreatedAt time.Time `json:"created_at"`
}

// EmbeddingRequest asks for a vector embedding of a single text.
type EmbeddingRequest struct {
	ModelID  string `json:"model_id"`
	TenantID string `json:"tenant_id,omitempty"`
	Input    string `json:"input"`
}

// EmbeddingResponse is the reply to an EmbeddingRequest.
type EmbeddingResponse struct {
	RequestID  string    `json:"request_id"`
	ModelID    string    `json:"model_id"`
	Embedding  []float64 `json:"embeddings"`
	Dimensions int       `json:"dimensions"`
	Usage      Usage     `json:"usage"`
	CreatedAt  time.Time `json:"created_at"`
}
