package mcpgateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vikashloomba/mcp-tool-manager-go/pkg/mcpmgr"
)

// Verifies that consumers can add custom routes via ServeMux before serving.
func TestGatewayServeMux_AllowsCustomRoutes_BeforeServe(t *testing.T) {
	manager := mcpmgr.NewManager(nil)
	gateway, err := NewGateway(manager, &Options{Path: "/mcp"})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	mux := gateway.ServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := httptest.NewServer(gateway.Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		t.Fatalf("GET /healthz status = %d, want 200", res.StatusCode)
	}
	body, _ := io.ReadAll(res.Body)
	if string(body) != "ok" {
		t.Fatalf("GET /healthz body = %q, want \"ok\"", string(body))
	}
}

// Verifies that routes passed through Options are mounted next to the MCP
// endpoint.
func TestGatewayOptionsRoutes(t *testing.T) {
	manager := mcpmgr.NewManager(nil)
	gateway, err := NewGateway(manager, &Options{Routes: map[string]http.Handler{
		"/metrics": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		}),
	}})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	srv := httptest.NewServer(gateway.Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != 200 || string(body) != "metrics" {
		t.Fatalf("GET /metrics = %d %q", res.StatusCode, string(body))
	}
}

func TestGatewayCORS(t *testing.T) {
	manager := mcpmgr.NewManager(nil)
	gateway, err := NewGateway(manager, nil)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	srv := httptest.NewServer(gateway.Handler())
	defer srv.Close()

	preflight := func(origin string) string {
		req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/mcp", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("preflight: %v", err)
		}
		defer res.Body.Close()
		return res.Header.Get("Access-Control-Allow-Origin")
	}

	if got := preflight("http://localhost:5173"); got != "http://localhost:5173" {
		t.Fatalf("loopback origin rejected: %q", got)
	}
	if got := preflight("https://evil.example"); got != "" {
		t.Fatalf("foreign origin allowed: %q", got)
	}
}

func TestGatewayListenAndServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	gateway, err := NewGateway(mcpmgr.NewManager(nil), &Options{Addr: addr})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gateway.ListenAndServe(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			_ = conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("gateway never started listening: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("ListenAndServe returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("ListenAndServe did not stop")
	}
	if err := gateway.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown after stop: %v", err)
	}
}
