package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"localforge/mcpd/pkg/inference"
	"localforge/mcpd/pkg/mcp"
	"localforge/mcpd/pkg/privacy"
	"localforge/mcpd/pkg/registry"
	"localforge/mcpd/pkg/tenant"
)

func startTestServer(t *testing.T, cfg Config, opts ...Option) *Server {
	t.Helper()

	enforcer := privacy.NewEnforcer(privacy.DefaultConfig())
	reg := registry.New(enforcer)
	t.Cleanup(func() { reg.Close() })
	handler := mcp.NewHandler(reg, inference.NewService(reg, enforcer), enforcer)
	resolver := tenant.NewStaticResolver(
		tenant.Info{ID: "A", Slug: "a", Name: "Tenant A", Active: true},
	)

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = "127.0.0.1:0"
	}
	srv := NewServer(cfg, handler, resolver, opts...)

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(context.Background()) }()
	t.Cleanup(func() {
		srv.Stop()
		select {
		case err := <-errChan:
			if err != nil {
				t.Errorf("server exited with error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.IsRunning() && srv.Addr() != nil {
			return srv
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server did not start")
	return nil
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// roundTrip writes one line and reads one reply line.
func roundTrip(t *testing.T, conn net.Conn, line string) map[string]any {
	t.Helper()
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		t.Fatalf("no reply: %v", scanner.Err())
	}
	var env map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
		t.Fatalf("reply is not valid JSON: %v", err)
	}
	return env
}

func TestPingOverTCP(t *testing.T) {
	srv := startTestServer(t, Config{})
	conn := dial(t, srv)

	env := roundTrip(t, conn, `{"type":"request","id":"1","method":"ping"}`)
	if env["type"] != "response" || env["id"] != "1" {
		t.Fatalf("unexpected reply %v", env)
	}
}

func TestMalformedLineOverTCP(t *testing.T) {
	srv := startTestServer(t, Config{})
	conn := dial(t, srv)

	env := roundTrip(t, conn, "{broken")
	if got, _ := env["code"].(float64); int(got) != -32700 {
		t.Fatalf("expected parse error, got %v", env)
	}
	if id, present := env["id"]; !present || id != nil {
		t.Fatalf("expected null id, got %v", id)
	}
}

func TestTenantResolvedPerConnection(t *testing.T) {
	srv := startTestServer(t, Config{}, WithPrincipalFunc(func(net.Conn) string { return "A" }))
	conn := dial(t, srv)

	env := roundTrip(t, conn, `{"type":"request","id":"1","method":"model/register","params":{"name":"m","backend_type":"echo"}}`)
	if env["type"] != "response" {
		t.Fatalf("registration failed: %v", env)
	}
	result := env["result"].(map[string]any)
	if result["model_id"] != "A_m" {
		t.Errorf("expected tenant A namespace, got %v", result)
	}
}

func TestUnresolvedPrincipalDeniedPerRequest(t *testing.T) {
	srv := startTestServer(t, Config{}, WithPrincipalFunc(func(net.Conn) string { return "ghost" }))
	conn := dial(t, srv)

	env := roundTrip(t, conn, `{"type":"request","id":"1","method":"ping"}`)
	if got, _ := env["code"].(float64); int(got) != -32004 {
		t.Fatalf("expected tenant access denied, got %v", env)
	}
}

func TestConnectionIsolation(t *testing.T) {
	srv := startTestServer(t, Config{})

	// Kill one connection mid-stream; a second connection keeps working.
	c1 := dial(t, srv)
	c1.Write([]byte(`{"type":"req`)) // partial line, then reset
	c1.Close()

	c2 := dial(t, srv)
	env := roundTrip(t, c2, `{"type":"request","id":"2","method":"ping"}`)
	if env["type"] != "response" {
		t.Fatalf("second connection broken: %v", env)
	}
}

func TestConnectionLimit(t *testing.T) {
	srv := startTestServer(t, Config{MaxConnections: 1})

	c1 := dial(t, srv)
	if env := roundTrip(t, c1, `{"type":"request","id":"1","method":"ping"}`); env["type"] != "response" {
		t.Fatalf("first connection failed: %v", env)
	}

	// The second connection must be closed without a reply.
	c2 := dial(t, srv)
	c2.SetReadDeadline(time.Now().Add(2 * time.Second))
	fmt.Fprintln(c2, `{"type":"request","id":"2","method":"ping"}`)
	buf := make([]byte, 1)
	if _, err := c2.Read(buf); err == nil {
		t.Error("expected the over-limit connection to be closed")
	}
}

func TestMultipleRequestsOneConnection(t *testing.T) {
	srv := startTestServer(t, Config{})
	conn := dial(t, srv)

	scanner := bufio.NewScanner(conn)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(conn, `{"type":"request","id":"%d","method":"ping"}`+"\n", i)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if !scanner.Scan() {
			t.Fatalf("no reply for request %d: %v", i, scanner.Err())
		}
		var env map[string]any
		json.Unmarshal(scanner.Bytes(), &env)
		if env["id"] != fmt.Sprint(i) {
			t.Fatalf("reply %d correlates to %v", i, env["id"])
		}
	}
}

func TestStartTwiceFails(t *testing.T) {
	srv := startTestServer(t, Config{})
	if err := srv.Start(context.Background()); err == nil {
		t.Error("expected second Start to fail")
	}
}

func TestStopWithOpenConnection(t *testing.T) {
	srv := startTestServer(t, Config{})
	conn := dial(t, srv)
	if env := roundTrip(t, conn, `{"type":"request","id":"1","method":"ping"}`); env["type"] != "response" {
		t.Fatalf("ping failed: %v", env)
	}

	// A clean stop must not surface the listener close as an accept
	// error; the startTestServer cleanup fails the test if Start
	// returned anything but nil.
	srv.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && srv.IsRunning() {
		time.Sleep(5 * time.Millisecond)
	}
	if srv.IsRunning() {
		t.Fatal("server still running after Stop")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	srv := startTestServer(t, Config{})
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown errored: %v", err)
	}
	if srv.IsRunning() {
		t.Error("expected server stopped")
	}
}
