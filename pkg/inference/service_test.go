package inference

import (
	"context"
	"errors"
	"testing"

	"localforge/mcpd/pkg/backends"
	"localforge/mcpd/pkg/privacy"
	"localforge/mcpd/pkg/registry"
	"localforge/mcpd/pkg/tenant"
)

type stubBackend struct {
	caps       []backends.Capability
	lastPrompt string
}

func (s *stubBackend) Completion(ctx context.Context, req *backends.CompletionRequest) (*backends.CompletionResponse, error) {
	s.lastPrompt = req.Prompt
	return &backends.CompletionResponse{Text: "done", Usage: backends.Usage{TotalTokens: 2}}, nil
}

func (s *stubBackend) Chat(ctx context.Context, req *backends.ChatRequest) (*backends.ChatResponse, error) {
	return &backends.ChatResponse{Message: backends.Message{Role: backends.RoleAssistant, Content: "reply"}}, nil
}

func (s *stubBackend) Embedding(ctx context.Context, req *backends.EmbeddingRequest) (*backends.EmbeddingResponse, error) {
	return &backends.EmbeddingResponse{Embedding: []float64{1, 2}, Dimensions: 2}, nil
}

func (s *stubBackend) HealthCheck(ctx context.Context) error { return nil }
func (s *stubBackend) Name() string                          { return "stub" }
func (s *stubBackend) Type() string                          { return "stub" }
func (s *stubBackend) Capabilities() []backends.Capability {
	if s.caps != nil {
		return s.caps
	}
	return []backends.Capability{backends.CapabilityCompletion, backends.CapabilityChat, backends.CapabilityEmbedding}
}
func (s *stubBackend) Close() error { return nil }

func newTestService(t *testing.T) (*Service, *registry.Registry, *stubBackend) {
	t.Helper()

	stub := &stubBackend{}
	factory := func(backendType, name string, config map[string]string) (backends.Backend, error) {
		return stub, nil
	}
	enforcer := privacy.NewEnforcer(privacy.DefaultConfig())
	reg := registry.New(enforcer, registry.WithFactory(factory))
	t.Cleanup(func() { reg.Close() })
	return NewService(reg, enforcer), reg, stub
}

func ctxFor(tenantID string) context.Context {
	return tenant.NewContext(context.Background(), tenant.Info{ID: tenantID, Active: true})
}

func TestCompletion(t *testing.T) {
	svc, reg, _ := newTestService(t)
	id, err := reg.Register(context.Background(), registry.RegisterRequest{Name: "m", BackendType: "stub"}, "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := svc.Completion(ctxFor("A"), &backends.CompletionRequest{ModelID: id, Prompt: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "done" {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if resp.RequestID == "" {
		t.Error("expected a stamped request id")
	}
	if resp.CreatedAt.IsZero() {
		t.Error("expected a stamped timestamp")
	}
	if resp.ModelID != id {
		t.Errorf("expected model id %q, got %q", id, resp.ModelID)
	}
}

func TestCompletionAttachesTenant(t *testing.T) {
	svc, reg, _ := newTestService(t)
	id, _ := reg.Register(context.Background(), registry.RegisterRequest{Name: "m", BackendType: "stub"}, "A")

	req := &backends.CompletionRequest{ModelID: id, Prompt: "hello"}
	if _, err := svc.Completion(ctxFor("A"), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.TenantID != "A" {
		t.Errorf("expected tenant attached to request, got %q", req.TenantID)
	}
}

func TestCompletionNoTenantContext(t *testing.T) {
	svc, reg, _ := newTestService(t)
	id, _ := reg.Register(context.Background(), registry.RegisterRequest{Name: "m", BackendType: "stub"}, "A")

	_, err := svc.Completion(context.Background(), &backends.CompletionRequest{ModelID: id, Prompt: "x"})
	var denied *AccessDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected AccessDeniedError without tenant context, got %v", err)
	}
}

func TestCompletionForeignTenant(t *testing.T) {
	svc, reg, _ := newTestService(t)
	id, _ := reg.Register(context.Background(), registry.RegisterRequest{Name: "m", BackendType: "stub"}, "A")

	_, err := svc.Completion(ctxFor("B"), &backends.CompletionRequest{ModelID: id, Prompt: "x"})
	var denied *AccessDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected AccessDeniedError for foreign tenant, got %v", err)
	}
}

func TestCompletionMissingCapability(t *testing.T) {
	svc, reg, stub := newTestService(t)
	stub.caps = []backends.Capability{backends.CapabilityEmbedding}
	id, _ := reg.Register(context.Background(), registry.RegisterRequest{Name: "m", BackendType: "stub"}, "A")

	_, err := svc.Completion(ctxFor("A"), &backends.CompletionRequest{ModelID: id, Prompt: "x"})
	var na *NotAvailableError
	if !errors.As(err, &na) {
		t.Fatalf("expected NotAvailableError, got %v", err)
	}
}

func TestCompletionBlocksExternalURL(t *testing.T) {
	svc, reg, stub := newTestService(t)
	id, _ := reg.Register(context.Background(), registry.RegisterRequest{Name: "m", BackendType: "stub"}, "A")

	_, err := svc.Completion(ctxFor("A"), &backends.CompletionRequest{
		ModelID: id,
		Prompt:  "please fetch https://api.external.com/data",
	})
	if !privacy.IsViolation(err) {
		t.Fatalf("expected privacy violation, got %v", err)
	}
	if stub.lastPrompt != "" {
		t.Error("backend must not be reached for a blocked request")
	}
}

func TestChatValidatesEveryMessage(t *testing.T) {
	svc, reg, _ := newTestService(t)
	id, _ := reg.Register(context.Background(), registry.RegisterRequest{Name: "m", BackendType: "stub"}, "A")

	_, err := svc.Chat(ctxFor("A"), &backends.ChatRequest{
		ModelID: id,
		Messages: []backends.Message{
			{Role: backends.RoleUser, Content: "earlier message with https://exfil.example.com"},
			{Role: backends.RoleUser, Content: "latest message is clean"},
		},
	})
	if !privacy.IsViolation(err) {
		t.Fatalf("expected violation from an earlier message, got %v", err)
	}
}

func TestChat(t *testing.T) {
	svc, reg, _ := newTestService(t)
	id, _ := reg.Register(context.Background(), registry.RegisterRequest{Name: "m", BackendType: "stub"}, "A")

	resp, err := svc.Chat(ctxFor("A"), &backends.ChatRequest{
		ModelID:  id,
		Messages: []backends.Message{{Role: backends.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message.Content != "reply" || resp.RequestID == "" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestEmbedding(t *testing.T) {
	svc, reg, _ := newTestService(t)
	id, _ := reg.Register(context.Background(), registry.RegisterRequest{Name: "m", BackendType: "stub"}, "A")

	resp, err := svc.Embedding(ctxFor("A"), &backends.EmbeddingRequest{ModelID: id, Input: "text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Dimensions != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
}
