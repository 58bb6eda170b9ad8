package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPConfig configures an HTTPBackend.
type HTTPConfig struct {
	// Name is the backend's registry-facing name.
	Name string

	// BaseURL is the local runtime endpoint
	// (e.g. "http://localhost:11434").
	BaseURL string

	// Model is the upstream model identifier passed to the runtime.
	// Defaults to Name.
	Model string

	// Timeout bounds each request. Default 60s.
	Timeout time.Duration

	// Capabilities the runtime supports. Default: all three.
	Capabilities []Capability

	// MaxIdleConns caps the connection pool. Default 10.
	MaxIdleConns int
}

// HTTPBackend adapts an OpenAI-compatible local runtime (llama.cpp
// server, Ollama, vLLM) to the Backend interface. It does not retry:
// failures surface to the caller, which owns any retry policy.
type HTTPBackend struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPBackend creates an HTTPBackend with a pooled HTTP client.
// The base URL is required; privacy validation of the URL happens in
// the registry before the backend is constructed.
func NewHTTPBackend(cfg HTTPConfig) (*HTTPBackend, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, &ConfigError{Backend: cfg.Name, Field: "base_url", Message: "required"}
	}
	if cfg.Model == "" {
		cfg.Model = cfg.Name
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 10
	}
	if len(cfg.Capabilities) == 0 {
		cfg.Capabilities = []Capability{CapabilityCompletion, CapabilityChat, CapabilityEmbedding}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPBackend{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}, nil
}

// Name returns the backend's configured name.
func (b *HTTPBackend) Name() string { return b.cfg.Name }

// Type returns "openai-compatible".
func (b *HTTPBackend) Type() string { return TypeOpenAICompatible }

// Capabilities returns the configured capability set.
func (b *HTTPBackend) Capabilities() []Capability {
	return append([]Capability(nil), b.cfg.Capabilities...)
}

// Close releases pooled connections.
func (b *HTTPBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// HealthCheck verifies the runtime answers on its models endpoint.
func (b *HTTPBackend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return b.wrapTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &BackendError{Backend: b.cfg.Name, StatusCode: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}

type httpCompletionResponse struct {
	Choices []struct {
		Text    string `json:"text"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type httpEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage Usage `json:"usage"`
}

// supports reports whether the configured capability set includes kind.
func (b *HTTPBackend) supports(kind Capability) bool {
	for _, c := range b.cfg.Capabilities {
		if c == kind {
			return true
		}
	}
	return false
}

// Completion implements Backend.
func (b *HTTPBackend) Completion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if !b.supports(CapabilityCompletion) {
		return nil, &NotSupportedError{Backend: b.cfg.Name, Capability: CapabilityCompletion}
	}
	body := map[string]any{
		"model":  b.cfg.Model,
		"prompt": req.Prompt,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if len(req.Stop) > 0 {
		body["stop"] = req.Stop
	}

	var parsed httpCompletionResponse
	if err := b.post(ctx, "/v1/completions", body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, &ParseError{Backend: b.cfg.Name, Cause: fmt.Errorf("no choices in response")}
	}

	return &CompletionResponse{
		ModelID: req.ModelID,
		Text:    parsed.Choices[0].Text,
		Usage:   parsed.Usage,
	}, nil
}

// Chat implements Backend.
func (b *HTTPBackend) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if !b.supports(CapabilityChat) {
		return nil, &NotSupportedError{Backend: b.cfg.Name, Capability: CapabilityChat}
	}
	body := map[string]any{
		"model":    b.cfg.Model,
		"messages": req.Messages,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}

	var parsed httpCompletionResponse
	if err := b.post(ctx, "/v1/chat/completions", body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, &ParseError{Backend: b.cfg.Name, Cause: fmt.Errorf("no choices in response")}
	}

	msg := parsed.Choices[0].Message
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	return &ChatResponse{
		ModelID: req.ModelID,
		Message: Message{Role: msg.Role, Content: msg.Content},
		Usage:   parsed.Usage,
	}, nil
}

// Embedding implements Backend.
func (b *HTTPBackend) Embedding(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if !b.supports(CapabilityEmbedding) {
		return nil, &NotSupportedError{Backend: b.cfg.Name, Capability: CapabilityEmbedding}
	}
	body := map[string]any{
		"model": b.cfg.Model,
		"input": req.Input,
	}

	var parsed httpEmbeddingResponse
	if err := b.post(ctx, "/v1/embeddings", body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) == 0 {
		return nil, &ParseError{Backend: b.cfg.Name, Cause: fmt.Errorf("no embedding in response")}
	}

	vec := parsed.Data[0].Embedding
	return &EmbeddingResponse{
		ModelID:    req.ModelID,
		Embedding:  vec,
		Dimensions: len(vec),
		Usage:      parsed.Usage,
	}, nil
}

// post sends one JSON request and decodes the JSON reply into out.
func (b *HTTPBackend) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return b.wrapTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &BackendError{Backend: b.cfg.Name, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &BackendError{
			Backend:    b.cfg.Name,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &ParseError{Backend: b.cfg.Name, Cause: err}
	}
	return nil
}

// wrapTransportError maps client errors to the typed taxonomy.
func (b *HTTPBackend) wrapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Backend: b.cfg.Name, Timeout: b.cfg.Timeout}
	}
	var urlErr interface{ Timeout() bool }
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &TimeoutError{Backend: b.cfg.Name, Timeout: b.cfg.Timeout}
	}
	return &BackendError{Backend: b.cfg.Name, Message: "request failed", Cause: err}
}
