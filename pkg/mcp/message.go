package mcp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type tags a wire envelope.
type Type string

const (
	TypeRequest  Type = "request"
	TypeResponse Type = "response"
	TypeError    Type = "error"
)

// Message is one parsed wire envelope. Exactly one of the
// request/response/error field groups is meaningful depending on Type;
// messages are immutable once constructed.
type Message struct {
	// Type tags the envelope.
	Type Type

	// ID correlates a response or error to its request. Empty on an
	// error envelope means the id could not be extracted; it is
	// serialized as null.
	ID string

	// Method names the operation (requests only).
	Method string

	// Params is the undecoded request payload.
	Params json.RawMessage

	// Timestamp is when the request was created (requests only).
	Timestamp time.Time

	// Result is the undecoded response payload.
	Result json.RawMessage

	// Code, ErrMessage and Data describe an error envelope.
	Code       Code
	ErrMessage string
	Data       json.RawMessage
}

// envelope is the raw wire shape. ID is a pointer so an error envelope
// can carry an explicit null id.
type envelope struct {
	Type      string          `json:"type"`
	ID        *string         `json:"id"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Code      *int            `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewRequest builds a request envelope. params is marshalled
// immediately so a later mutation of the argument cannot change the
// message.
func NewRequest(id, method string, params any) (*Message, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	return &Message{
		Type:      TypeRequest,
		ID:        id,
		Method:    method,
		Params:    raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewResponse builds a response envelope for the given request id.
func NewResponse(id string, result any) (*Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &Message{Type: TypeResponse, ID: id, Result: raw}, nil
}

// NewErrorMessage builds an error envelope. An empty id serializes as
// null, which is how parse failures (no id extractable) go on the wire.
func NewErrorMessage(id string, perr *Error) *Message {
	msg := &Message{
		Type:       TypeError,
		ID:         id,
		Code:       perr.Code,
		ErrMessage: perr.Message,
	}
	if perr.Data != nil {
		if raw, err := json.Marshal(perr.Data); err == nil {
			msg.Data = raw
		}
	}
	return msg
}

// Marshal serializes the message to its single-line wire form, without
// the trailing newline (framing belongs to the transport).
func (m *Message) Marshal() ([]byte, error) {
	env := envelope{
		Type:   string(m.Type),
		Method: m.Method,
		Params: m.Params,
		Result: m.Result,
		Data:   m.Data,
	}

	switch m.Type {
	case TypeRequest:
		if m.ID == "" {
			return nil, fmt.Errorf("request requires an id")
		}
		env.ID = &m.ID
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		env.Timestamp = ts.Format(time.RFC3339Nano)
	case TypeResponse:
		if m.ID == "" {
			return nil, fmt.Errorf("response requires an id")
		}
		env.ID = &m.ID
	case TypeError:
		if m.ID != "" {
			env.ID = &m.ID
		}
		code := int(m.Code)
		env.Code = &code
		env.Message = m.ErrMessage
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}

	return json.Marshal(env)
}

// Parse decodes one wire line into a Message. A syntactically valid
// JSON object with an unknown or missing type, or a request without a
// method, is a structural error distinct from a parse error; callers
// map the two to different protocol codes. On a structural error the
// returned message is still non-nil and carries any extractable id, so
// the error reply can be correlated; only a parse failure returns nil.
func Parse(raw []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &Error{Code: CodeParseError, Message: "invalid message encoding"}
	}

	msg := &Message{
		Method: env.Method,
		Params: env.Params,
		Result: env.Result,
		Data:   env.Data,
	}
	if env.ID != nil {
		msg.ID = *env.ID
	}

	switch Type(env.Type) {
	case TypeRequest:
		msg.Type = TypeRequest
		if env.ID == nil || *env.ID == "" {
			return msg, &Error{Code: CodeInvalidRequest, Message: "request requires an id"}
		}
		if env.Method == "" {
			return msg, &Error{Code: CodeInvalidRequest, Message: "request requires a method"}
		}
		if env.Timestamp != "" {
			if ts, err := time.Parse(time.RFC3339Nano, env.Timestamp); err == nil {
				msg.Timestamp = ts
			}
		}
	case TypeResponse:
		msg.Type = TypeResponse
		if env.ID == nil || *env.ID == "" {
			return msg, &Error{Code: CodeInvalidRequest, Message: "response requires an id"}
		}
	case TypeError:
		msg.Type = TypeError
		if env.Code == nil {
			return msg, &Error{Code: CodeInvalidRequest, Message: "error requires a code"}
		}
		msg.Code = Code(*env.Code)
		msg.ErrMessage = env.Message
	default:
		return msg, &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf("unknown message type %q", env.Type)}
	}

	return msg, nil
}
