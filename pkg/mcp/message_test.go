package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestRequestRoundTrip(t *testing.T) {
	req, err := NewRequest("req-1", MethodCompletion, map[string]string{"model_id": "A_llama", "prompt": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := req.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.ContainsRune(raw, '\n') {
		t.Error("wire form must be a single line")
	}

	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Type != TypeRequest || parsed.ID != "req-1" || parsed.Method != MethodCompletion {
		t.Errorf("round trip mismatch: %+v", parsed)
	}

	var params map[string]string
	if err := json.Unmarshal(parsed.Params, &params); err != nil {
		t.Fatalf("params did not survive: %v", err)
	}
	if params["prompt"] != "hi" {
		t.Errorf("unexpected params %v", params)
	}
	if parsed.Timestamp.IsZero() {
		t.Error("expected timestamp to survive the round trip")
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp, err := NewResponse("req-2", map[string]int{"answer": 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := resp.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Type != TypeResponse || parsed.ID != "req-2" {
		t.Errorf("round trip mismatch: %+v", parsed)
	}

	var result map[string]int
	if err := json.Unmarshal(parsed.Result, &result); err != nil {
		t.Fatalf("result did not survive: %v", err)
	}
	if result["answer"] != 42 {
		t.Errorf("unexpected result %v", result)
	}
}

func TestErrorRoundTrip(t *testing.T) {
	msg := NewErrorMessage("req-3", &Error{
		Code:    CodeTenantAccessDenied,
		Message: "denied",
		Data:    map[string]any{"tenant": "B"},
	})

	raw, err := msg.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Type != TypeError || parsed.ID != "req-3" {
		t.Errorf("round trip mismatch: %+v", parsed)
	}
	if parsed.Code != CodeTenantAccessDenied || parsed.ErrMessage != "denied" {
		t.Errorf("error fields lost: %+v", parsed)
	}
}

func TestErrorNullID(t *testing.T) {
	msg := NewErrorMessage("", NewError(CodeParseError, "bad"))
	raw, err := msg.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var env map[string]any
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, present := env["id"]
	if !present || v != nil {
		t.Errorf("expected explicit null id, got %v (present=%v)", v, present)
	}
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		code   Code
		wantID string
	}{
		{"not json", "this is not json", CodeParseError, ""},
		{"unknown type", `{"type":"gossip","id":"1"}`, CodeInvalidRequest, "1"},
		{"request without method", `{"type":"request","id":"1"}`, CodeInvalidRequest, "1"},
		{"request without id", `{"type":"request","method":"ping"}`, CodeInvalidRequest, ""},
		{"error without code", `{"type":"error","id":"1"}`, CodeInvalidRequest, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse([]byte(tt.raw))
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if perr.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, perr.Code)
			}

			// Structural errors keep any extractable id so the
			// failure can still be correlated.
			gotID := ""
			if msg != nil {
				gotID = msg.ID
			}
			if gotID != tt.wantID {
				t.Errorf("expected id %q on the partial message, got %q", tt.wantID, gotID)
			}
		})
	}
}

func TestRequestTimestampFormat(t *testing.T) {
	req := &Message{Type: TypeRequest, ID: "x", Method: "ping", Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	raw, err := req.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var env map[string]any
	json.Unmarshal(raw, &env)
	ts, _ := env["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", ts, err)
	}
}
