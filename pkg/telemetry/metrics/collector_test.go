package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"localforge/mcpd/pkg/mcp"
)

func TestObserveRequestCounts(t *testing.T) {
	c := NewCollector(nil)
	ctx := context.Background()

	c.ObserveRequest(ctx, mcp.RequestRecord{Method: "ping", Status: "ok", Duration: time.Millisecond})
	c.ObserveRequest(ctx, mcp.RequestRecord{Method: "ping", Status: "ok", Duration: time.Millisecond})
	c.ObserveRequest(ctx, mcp.RequestRecord{Method: "model/get", Status: "error", Code: -32001})

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("ping", "ok")); got != 2 {
		t.Errorf("expected 2 ok pings, got %v", got)
	}
	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("model/get", "error")); got != 1 {
		t.Errorf("expected 1 failed get, got %v", got)
	}
}

func TestPrivacyBlockCountedByRule(t *testing.T) {
	c := NewCollector(nil)
	ctx := context.Background()

	c.ObserveRequest(ctx, mcp.RequestRecord{
		Method: "inference/completion",
		Status: "error",
		Code:   -32602,
		Rule:   "external_url_in_prompt",
	})
	c.ObserveRequest(ctx, mcp.RequestRecord{Method: "inference/completion", Status: "error", Code: -32602})

	if got := testutil.ToFloat64(c.privacyBlocksTotal.WithLabelValues("external_url_in_prompt")); got != 1 {
		t.Errorf("expected 1 privacy block, got %v", got)
	}
}

func TestGauges(t *testing.T) {
	c := NewCollector(nil)

	c.SetModelCount("A", 3)
	c.SetModelCount("", 1)
	c.SetBackendHealth("A_llama3", true)
	c.SetBackendHealth("A_broken", false)

	if got := testutil.ToFloat64(c.registeredModels.WithLabelValues("A")); got != 3 {
		t.Errorf("expected 3 models for A, got %v", got)
	}
	if got := testutil.ToFloat64(c.registeredModels.WithLabelValues("admin")); got != 1 {
		t.Errorf("expected admin namespace used for the empty tenant, got %v", got)
	}
	if got := testutil.ToFloat64(c.backendHealth.WithLabelValues("A_llama3")); got != 1 {
		t.Errorf("expected healthy gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(c.backendHealth.WithLabelValues("A_broken")); got != 0 {
		t.Errorf("expected unhealthy gauge 0, got %v", got)
	}

	c.RemoveBackend("A_broken")
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollector(nil)
	c.ObserveRequest(context.Background(), mcp.RequestRecord{Method: "ping", Status: "ok"})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "mcpd_requests_total") {
		t.Errorf("exposition missing request counter:\n%s", body)
	}
}
