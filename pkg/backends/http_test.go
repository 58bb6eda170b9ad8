package backends

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newRuntimeStub starts an OpenAI-compatible runtime stub.
func newRuntimeStub(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"text": "generated text"}},
			"usage":   map[string]int{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hi there"}},
			},
			"usage": map[string]int{"total_tokens": 4},
		})
	})
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data":  []map[string]any{{"embedding": []float64{0.1, 0.2, 0.3}}},
			"usage": map[string]int{"prompt_tokens": 2, "total_tokens": 2},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPBackendRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPBackend(HTTPConfig{Name: "m"})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if ce.Field != "base_url" {
		t.Errorf("expected base_url field, got %q", ce.Field)
	}
}

func TestHTTPBackendCapabilityNotSupported(t *testing.T) {
	srv := newRuntimeStub(t)
	b, err := NewHTTPBackend(HTTPConfig{
		Name:         "llama",
		BaseURL:      srv.URL,
		Capabilities: []Capability{CapabilityCompletion},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	_, err = b.Embedding(context.Background(), &EmbeddingRequest{ModelID: "m", Input: "x"})
	var ns *NotSupportedError
	if !errors.As(err, &ns) {
		t.Fatalf("expected NotSupportedError, got %v", err)
	}
	if ns.Capability != CapabilityEmbedding {
		t.Errorf("unexpected capability %q", ns.Capability)
	}
}

func TestHTTPBackendCompletion(t *testing.T) {
	srv := newRuntimeStub(t)
	b, err := NewHTTPBackend(HTTPConfig{Name: "llama", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	resp, err := b.Completion(context.Background(), &CompletionRequest{
		ModelID: "acme_llama",
		Prompt:  "hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "generated text" {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 5 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
	if resp.ModelID != "acme_llama" {
		t.Errorf("unexpected model id %q", resp.ModelID)
	}
}

func TestHTTPBackendChat(t *testing.T) {
	srv := newRuntimeStub(t)
	b, err := NewHTTPBackend(HTTPConfig{Name: "llama", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	resp, err := b.Chat(context.Background(), &ChatRequest{
		ModelID:  "acme_llama",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message.Role != RoleAssistant || resp.Message.Content != "hi there" {
		t.Errorf("unexpected message %+v", resp.Message)
	}
}

func TestHTTPBackendEmbedding(t *testing.T) {
	srv := newRuntimeStub(t)
	b, err := NewHTTPBackend(HTTPConfig{Name: "embedder", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	resp, err := b.Embedding(context.Background(), &EmbeddingRequest{
		ModelID: "acme_embedder",
		Input:   "some text",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Dimensions != 3 || len(resp.Embedding) != 3 {
		t.Errorf("unexpected embedding %+v", resp)
	}
}

func TestHTTPBackendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b, err := NewHTTPBackend(HTTPConfig{Name: "llama", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	_, err = b.Completion(context.Background(), &CompletionRequest{Prompt: "x"})
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if be.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", be.StatusCode)
	}
	if !IsUnavailable(err) {
		t.Error("expected 503 to classify as unavailable")
	}
}

func TestHTTPBackendMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	b, err := NewHTTPBackend(HTTPConfig{Name: "llama", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	_, err = b.Completion(context.Background(), &CompletionRequest{Prompt: "x"})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestHTTPBackendContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	b, err := NewHTTPBackend(HTTPConfig{Name: "llama", BaseURL: srv.URL, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err = b.Completion(ctx, &CompletionRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation did not interrupt the request promptly")
	}
}

func TestHTTPBackendHealthCheck(t *testing.T) {
	srv := newRuntimeStub(t)
	b, err := NewHTTPBackend(HTTPConfig{Name: "llama", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	if err := b.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}
}
