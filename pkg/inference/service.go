// Package inference validates and dispatches inference calls against
// the model registry.
//
// Every call follows the same path: resolve the model under the
// caller's tenant identity, check the capability set, privacy-validate
// the payload text, then hand off to the backend. A request that
// arrives without tenant context is rejected outright, never
// defaulted to a public scope.
package inference

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"localforge/mcpd/pkg/backends"
	"localforge/mcpd/pkg/privacy"
	"localforge/mcpd/pkg/registry"
	"localforge/mcpd/pkg/tenant"
)

// Service dispatches completion, chat and embedding calls.
type Service struct {
	registry *registry.Registry
	enforcer *privacy.Enforcer
	logger   *slog.Logger
}

// NewService creates an inference service over the given registry and
// privacy policy.
func NewService(reg *registry.Registry, enforcer *privacy.Enforcer) *Service {
	return &Service{
		registry: reg,
		enforcer: enforcer,
		logger:   slog.Default().With("component", "inference"),
	}
}

// Completion validates and runs a single-prompt generation call.
func (s *Service) Completion(ctx context.Context, req *backends.CompletionRequest) (*backends.CompletionResponse, error) {
	backend, err := s.validate(ctx, &req.TenantID, req.ModelID, backends.CapabilityCompletion, req.Prompt, nil)
	if err != nil {
		return nil, err
	}

	resp, err := backend.Completion(ctx, req)
	if err != nil {
		return nil, err
	}
	s.stamp(&resp.RequestID, &resp.CreatedAt)
	resp.ModelID = req.ModelID
	return resp, nil
}

// Chat validates and runs a multi-turn generation call. Every message
// in the history is privacy-validated, not only the latest.
func (s *Service) Chat(ctx context.Context, req *backends.ChatRequest) (*backends.ChatResponse, error) {
	contents := make([]string, len(req.Messages))
	for i, m := range req.Messages {
		contents[i] = m.Content
	}

	backend, err := s.validate(ctx, &req.TenantID, req.ModelID, backends.CapabilityChat, "", contents)
	if err != nil {
		return nil, err
	}

	resp, err := backend.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	s.stamp(&resp.RequestID, &resp.CreatedAt)
	resp.ModelID = req.ModelID
	return resp, nil
}

// Embedding validates and runs a single-text embedding call.
func (s *Service) Embedding(ctx context.Context, req *backends.EmbeddingRequest) (*backends.EmbeddingResponse, error) {
	backend, err := s.validate(ctx, &req.TenantID, req.ModelID, backends.CapabilityEmbedding, req.Input, nil)
	if err != nil {
		return nil, err
	}

	resp, err := backend.Embedding(ctx, req)
	if err != nil {
		return nil, err
	}
	s.stamp(&resp.RequestID, &resp.CreatedAt)
	resp.ModelID = req.ModelID
	return resp, nil
}

// validate runs the shared pre-dispatch checks and resolves the
// backend handle. The caller's tenant id is attached to the outbound
// request (via reqTenant) before any check runs.
func (s *Service) validate(ctx context.Context, reqTenant *string, modelID string, kind backends.Capability, prompt string, messages []string) (backends.Backend, error) {
	id, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, &AccessDeniedError{ModelID: modelID}
	}
	*reqTenant = id.ID

	info, ok := s.registry.Get(modelID, id.ID)
	if !ok {
		return nil, &AccessDeniedError{ModelID: modelID}
	}
	if !info.HasCapability(kind) {
		return nil, &NotAvailableError{ModelID: modelID, Reason: "does not support " + string(kind)}
	}
	if info.Status != registry.StatusAvailable {
		return nil, &NotAvailableError{ModelID: modelID, Reason: "backend is " + string(info.Status)}
	}

	if err := s.enforcer.ValidateInferenceRequest(prompt, messages); err != nil {
		s.logger.WarnContext(ctx, "inference request blocked",
			"model_id", modelID,
			"tenant", id.ID,
		)
		return nil, err
	}

	backend, ok := s.registry.GetBackend(modelID, id.ID)
	if !ok {
		// Unregistered between Get and GetBackend.
		return nil, &AccessDeniedError{ModelID: modelID}
	}
	return backend, nil
}

// stamp fills the generated request id and creation timestamp on an
// outbound response.
func (s *Service) stamp(requestID *string, createdAt *time.Time) {
	*requestID = uuid.NewString()
	*createdAt = time.Now().UTC()
}
