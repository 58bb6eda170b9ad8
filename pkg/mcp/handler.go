package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"localforge/mcpd/pkg/backends"
	"localforge/mcpd/pkg/inference"
	"localforge/mcpd/pkg/privacy"
	"localforge/mcpd/pkg/registry"
	"localforge/mcpd/pkg/tenant"
)

// Protocol method names. Dispatch over them is a closed switch so the
// compiler sees every supported method in one place.
const (
	MethodPing          = "ping"
	MethodRegister      = "model/register"
	MethodUnregister    = "model/unregister"
	MethodList          = "model/list"
	MethodGet           = "model/get"
	MethodHealth        = "model/health"
	MethodCompletion    = "inference/completion"
	MethodChat          = "inference/chat"
	MethodEmbedding     = "inference/embedding"
	MethodPrivacyStatus = "privacy/status"
)

// RequestRecord summarizes one handled request for observers.
type RequestRecord struct {
	Method   string
	TenantID string
	ModelID  string
	Status   string // "ok" or "error"
	Code     Code   // zero when Status is "ok"
	Rule     string // violated privacy rule, when the error names one
	Duration time.Duration
	Error    string // sanitized error message, empty on success
}

// Observer receives a record per handled request. The metrics
// collector and the audit log both hook in here.
type Observer interface {
	ObserveRequest(ctx context.Context, rec RequestRecord)
}

// Handler is the server side of the protocol: it turns one raw inbound
// line into exactly one raw outbound line.
type Handler struct {
	registry  *registry.Registry
	inference *inference.Service
	enforcer  *privacy.Enforcer
	observers []Observer
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithObserver attaches an observer to every handled request.
func WithObserver(o Observer) HandlerOption {
	return func(h *Handler) { h.observers = append(h.observers, o) }
}

// NewHandler creates a protocol handler over the given services.
func NewHandler(reg *registry.Registry, svc *inference.Service, enforcer *privacy.Enforcer, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry:  reg,
		inference: svc,
		enforcer:  enforcer,
		logger:    slog.Default().With("component", "mcp.handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ProcessMessage handles one raw line and returns the raw reply line
// (without trailing newline). It never returns nothing: any failure,
// including a panic inside a handler, yields an error envelope.
func (h *Handler) ProcessMessage(ctx context.Context, raw []byte) []byte {
	msg, err := Parse(raw)
	if err != nil {
		perr := &Error{Code: CodeInternalError, Message: "unparseable message"}
		errors.As(err, &perr)
		// A structurally invalid envelope may still carry a usable id;
		// echo it so the client can correlate the failure. Only a parse
		// failure, where no id is extractable, goes out with a null id.
		id := ""
		if msg != nil {
			id = msg.ID
		}
		return h.frame(NewErrorMessage(id, perr))
	}

	if msg.Type != TypeRequest {
		return h.frame(NewErrorMessage(msg.ID, NewError(CodeInvalidRequest, "expected a request envelope")))
	}

	start := time.Now()
	result, perr := h.dispatch(ctx, msg)

	rec := RequestRecord{
		Method:   msg.Method,
		Duration: time.Since(start),
		Status:   "ok",
	}
	if id, ok := tenant.FromContext(ctx); ok {
		rec.TenantID = id.ID
	}
	rec.ModelID = modelIDFromParams(msg.Params)

	var out []byte
	if perr != nil {
		rec.Status = "error"
		rec.Code = perr.Code
		rec.Error = perr.Message
		if rule, ok := perr.Data["rule"].(string); ok {
			rec.Rule = rule
		}
		out = h.frame(NewErrorMessage(msg.ID, perr))
	} else {
		resp, err := NewResponse(msg.ID, result)
		if err != nil {
			perr = NewError(CodeInternalError, "failed to encode response")
			rec.Status, rec.Code, rec.Error = "error", perr.Code, perr.Message
			out = h.frame(NewErrorMessage(msg.ID, perr))
		} else {
			out = h.frame(resp)
		}
	}

	for _, o := range h.observers {
		o.ObserveRequest(ctx, rec)
	}
	return out
}

// dispatch routes one request to its handler. The tenant gate runs
// first: an inactive or unresolved tenant fails every method before
// any business logic sees the request.
func (h *Handler) dispatch(ctx context.Context, msg *Message) (result any, perr *Error) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("handler panicked",
				"method", msg.Method,
				"panic", h.enforcer.SanitizeLogMessage(fmt.Sprint(rec)),
			)
			result = nil
			perr = NewError(CodeInternalError, "internal error").WithData("type", "panic")
		}
	}()

	id, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, NewError(CodeTenantAccessDenied, "no tenant identity resolved")
	}
	if !id.Active && !id.IsAdmin() {
		return nil, NewError(CodeTenantAccessDenied, fmt.Sprintf("tenant %q is inactive", id.ID))
	}

	switch msg.Method {
	case MethodPing:
		return map[string]string{"status": "ok"}, nil

	case MethodRegister:
		var params struct {
			Name        string            `json:"name"`
			BackendType string            `json:"backend_type"`
			Config      map[string]string `json:"config"`
		}
		if perr := decodeParams(msg.Params, &params); perr != nil {
			return nil, perr
		}
		modelID, err := h.registry.Register(ctx, registry.RegisterRequest{
			Name:        params.Name,
			BackendType: params.BackendType,
			Config:      params.Config,
		}, id.ID)
		if err != nil {
			return nil, h.mapError(err)
		}
		return map[string]string{"model_id": modelID}, nil

	case MethodUnregister:
		var params struct {
			ModelID string `json:"model_id"`
		}
		if perr := decodeParams(msg.Params, &params); perr != nil {
			return nil, perr
		}
		if err := h.registry.Unregister(ctx, params.ModelID, id.ID); err != nil {
			return nil, h.mapError(err)
		}
		return map[string]bool{"unregistered": true}, nil

	case MethodList:
		return map[string]any{"models": h.registry.List(id.ID)}, nil

	case MethodGet:
		var params struct {
			ModelID string `json:"model_id"`
		}
		if perr := decodeParams(msg.Params, &params); perr != nil {
			return nil, perr
		}
		info, ok := h.registry.Get(params.ModelID, id.ID)
		if !ok {
			return nil, NewError(CodeModelNotAvailable, fmt.Sprintf("model %q not found", params.ModelID))
		}
		return info, nil

	case MethodHealth:
		// Scoped like list/get: a tenant only learns about its own
		// models, an admin context sees everything.
		return h.registry.HealthCheck(ctx, id.ID), nil

	case MethodCompletion:
		var req backends.CompletionRequest
		if perr := decodeParams(msg.Params, &req); perr != nil {
			return nil, perr
		}
		resp, err := h.inference.Completion(ctx, &req)
		if err != nil {
			return nil, h.mapError(err)
		}
		return resp, nil

	case MethodChat:
		var req backends.ChatRequest
		if perr := decodeParams(msg.Params, &req); perr != nil {
			return nil, perr
		}
		resp, err := h.inference.Chat(ctx, &req)
		if err != nil {
			return nil, h.mapError(err)
		}
		return resp, nil

	case MethodEmbedding:
		var req backends.EmbeddingRequest
		if perr := decodeParams(msg.Params, &req); perr != nil {
			return nil, perr
		}
		resp, err := h.inference.Embedding(ctx, &req)
		if err != nil {
			return nil, h.mapError(err)
		}
		return resp, nil

	case MethodPrivacyStatus:
		return h.enforcer.Status(), nil

	default:
		return nil, NewError(CodeMethodNotFound, fmt.Sprintf("unknown method %q", msg.Method))
	}
}

// mapError translates the typed error taxonomy into protocol errors.
// Anything unrecognized becomes an internal error with a sanitized
// message and the concrete type name as data, never the raw message.
func (h *Handler) mapError(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	var violation *privacy.ViolationError
	if errors.As(err, &violation) {
		return &Error{
			Code:    CodeInvalidParams,
			Message: "request blocked by privacy policy",
			Data: map[string]any{
				"rule": violation.Rule,
				"host": violation.Host,
			},
		}
	}

	var denied *inference.AccessDeniedError
	var ownership *registry.OwnershipError
	if errors.As(err, &denied) || errors.As(err, &ownership) {
		return NewError(CodeTenantAccessDenied, err.Error())
	}

	var notAvail *inference.NotAvailableError
	var notFound *registry.NotFoundError
	var notSupported *backends.NotSupportedError
	if errors.As(err, &notAvail) || errors.As(err, &notFound) || errors.As(err, &notSupported) {
		return NewError(CodeModelNotAvailable, err.Error())
	}

	var dup *registry.DuplicateNameError
	if errors.As(err, &dup) {
		return NewError(CodeInvalidParams, err.Error())
	}

	var cfgErr *backends.ConfigError
	if errors.As(err, &cfgErr) {
		return NewError(CodeInvalidParams, err.Error())
	}

	var be *backends.BackendError
	if errors.As(err, &be) {
		switch {
		case be.StatusCode == 429:
			return NewError(CodeRateLimitExceeded, "backend rate limit exceeded")
		case strings.Contains(strings.ToLower(be.Message), "context length"):
			return NewError(CodeContextTooLong, "context too long for model")
		case backends.IsUnavailable(err):
			return NewError(CodeModelNotAvailable, "backend unavailable")
		}
	}
	var te *backends.TimeoutError
	if errors.As(err, &te) {
		return NewError(CodeModelNotAvailable, "backend timed out")
	}

	return NewError(CodeInternalError, h.enforcer.SanitizeErrorMessage(err.Error())).
		WithData("type", fmt.Sprintf("%T", err))
}

// frame marshals an outbound message, falling back to a minimal
// internal error when even marshalling fails.
func (h *Handler) frame(msg *Message) []byte {
	raw, err := msg.Marshal()
	if err != nil {
		h.logger.Error("failed to marshal outbound message", "error", err)
		raw, _ = NewErrorMessage(msg.ID, NewError(CodeInternalError, "encoding failure")).Marshal()
	}
	return raw
}

// decodeParams unmarshals request params, mapping failures to
// invalid-params.
func decodeParams(raw json.RawMessage, into any) *Error {
	if len(raw) == 0 {
		return NewError(CodeInvalidParams, "missing params")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return NewError(CodeInvalidParams, "malformed params: "+err.Error())
	}
	return nil
}

// modelIDFromParams extracts model_id for observability without
// committing to a method-specific shape.
func modelIDFromParams(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var probe struct {
		ModelID string `json:"model_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.ModelID
}
