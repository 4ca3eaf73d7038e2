package mcpmgr

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestTailBufferKeepsMostRecentBytes(t *testing.T) {
	t.Parallel()

	b := newTailBuffer(8)
	_, _ = b.Write([]byte("hello "))
	_, _ = b.Write([]byte("world"))
	if got := b.String(); got != "lo world" {
		t.Fatalf("tail = %q, expected %q", got, "lo world")
	}
}

func TestAppendEnvLaterWins(t *testing.T) {
	t.Parallel()

	env := appendEnv([]string{"PATH=/bin"}, map[string]string{"B": "2", "A": "1"})
	env = appendEnv(env, map[string]string{"A": "override"})
	want := []string{"PATH=/bin", "A=1", "B=2", "A=override"}
	if strings.Join(env, ",") != strings.Join(want, ",") {
		t.Fatalf("env = %v, expected %v", env, want)
	}
}

func TestNetworkTransportFlavour(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cfg HTTPServerConfig
		sse bool
	}{
		{HTTPServerConfig{Endpoint: "https://x.io/mcp"}, false},
		{HTTPServerConfig{Endpoint: "https://x.io/sse"}, true},
		{HTTPServerConfig{Endpoint: "https://x.io/sse", Transport: HTTPTransportStreamable}, false},
		{HTTPServerConfig{Endpoint: "https://x.io/events", Transport: HTTPTransportSSE}, true},
	}
	for _, tc := range cases {
		tr := NewNetworkTransport("x", &tc.cfg)
		if tr.UsesSSE() != tc.sse {
			t.Fatalf("UsesSSE(%+v) = %v, expected %v", tc.cfg, tr.UsesSSE(), tc.sse)
		}
		if tr.Kind() != TransportHTTP {
			t.Fatalf("Kind() = %q", tr.Kind())
		}
	}
}

func TestHeaderDecoratorAppliesStaticHeaders(t *testing.T) {
	t.Parallel()

	seen := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	client := decorateHTTPClient(nil, map[string]string{"Authorization": "Bearer secret", "X-Team": "tools"})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer caller")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	got := <-seen
	if got.Get("Authorization") != "Bearer secret" || got.Get("X-Team") != "tools" {
		t.Fatalf("headers not applied: %v", got)
	}
	if req.Header.Get("Authorization") != "Bearer caller" {
		t.Fatalf("caller's request was mutated")
	}
}

func TestNetworkTransportCloseBeforeOpen(t *testing.T) {
	t.Parallel()

	tr := NewNetworkTransport("x", &HTTPServerConfig{Endpoint: "https://x.io/mcp"})
	tr.Close()
	tr.Close()
}

func TestSubprocessTransportMissingBinary(t *testing.T) {
	t.Parallel()

	tr := NewSubprocessTransport("ghost", &StdioServerConfig{Command: "mcpmgr-definitely-not-installed"})
	defer tr.Close()
	if _, err := tr.Open(context.Background()); err == nil {
		t.Fatalf("expected Open to fail for a missing binary")
	}
	tr.Close()
}

func TestSubprocessTransportUnreadableEnvFile(t *testing.T) {
	t.Parallel()

	tr := NewSubprocessTransport("x", &StdioServerConfig{
		Command: "true",
		EnvFile: filepath.Join(t.TempDir(), "absent.env"),
	})
	defer tr.Close()
	if _, err := tr.Open(context.Background()); err == nil || !strings.Contains(err.Error(), "envfile") {
		t.Fatalf("expected envfile error, got %v", err)
	}
}

func TestSubprocessTransportCapturesStderr(t *testing.T) {
	t.Parallel()

	cfg := fixtureStdio(t, "noisy", nil)
	tr := NewSubprocessTransport("noisy", cfg)
	client := NewClient("noisy", tr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	tools, err := client.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(tools) == 0 {
		t.Fatalf("expected fixture tools")
	}
	// stderr is fully drained once the child has been reaped.
	_ = client.Close()
	if !strings.Contains(tr.Stderr(), "fixture noisy starting") {
		t.Fatalf("stderr not captured: %q", tr.Stderr())
	}
}

func TestSDKTransportOpensOnce(t *testing.T) {
	t.Parallel()

	serverT, clientT := mcp.NewInMemoryTransports()
	ss, err := newFixtureServer("sdk").Connect(context.Background(), serverT, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer ss.Close()

	tr := NewSDKTransport(clientT)
	if tr.Kind() != TransportSDK {
		t.Fatalf("Kind() = %q", tr.Kind())
	}
	conn, err := tr.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tr.Close()
	tr.Close()
	first := conn.Close()
	if again := conn.Close(); again != first {
		t.Fatalf("repeated Close returned %v, expected cached %v", again, first)
	}
}
