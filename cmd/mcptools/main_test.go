package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/testboil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type searchArgs struct {
	Query string `json:"query"`
}

func writeConfig(t *testing.T) string {
	t.Helper()
	server := mcp.NewServer(&mcp.Implementation{Name: "docs", Version: "0.0.1"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "search", Description: "Search docs\nwith more detail"},
		func(ctx context.Context, req *mcp.CallToolRequest, in searchArgs) (*mcp.CallToolResult, any, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "hit:" + in.Query}}}, nil, nil
		})
	mcp.AddTool(server, &mcp.Tool{Name: "fail"},
		func(ctx context.Context, req *mcp.CallToolRequest, in struct{}) (*mcp.CallToolResult, any, error) {
			return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: "boom"}}}, nil, nil
		})
	ts := httptest.NewServer(mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil))
	t.Cleanup(ts.Close)

	doc := fmt.Sprintf(`{"servers": {
		"docs": {"url": %q},
		"dead": {"command": %q}
	}}`, ts.URL+"/mcp", filepath.Join(t.TempDir(), "no-such-binary"))
	path := filepath.Join(t.TempDir(), "mcp.json")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, ctx context.Context, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(ctx, args, &stdout, &stderr)
	return code, stdout.String()
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestListSkipsUnavailableServers(t *testing.T) {
	cfg := writeConfig(t)
	code, out := runCLI(t, testContext(t), "-config", cfg, "list")
	testboil.FailTestIfDiff(t, code, exitOK)
	testboil.FailTestIfDiff(t, out, "docs__fail\ndocs__search\tSearch docs\n")
}

func TestCall(t *testing.T) {
	cfg := writeConfig(t)
	ctx := testContext(t)

	code, out := runCLI(t, ctx, "-config", cfg, "call", "docs__search", `{"query":"mcp"}`)
	testboil.FailTestIfDiff(t, code, exitOK)
	testboil.FailTestIfDiff(t, out, "hit:mcp\n")

	code, out = runCLI(t, ctx, "-config", cfg, "call", "docs__fail")
	testboil.FailTestIfDiff(t, code, exitFail)
	testboil.AssertStringContains(t, out, "boom")

	code, _ = runCLI(t, ctx, "-config", cfg, "call", "dead__anything")
	testboil.FailTestIfDiff(t, code, exitFail)

	code, _ = runCLI(t, ctx, "-config", cfg, "call", "docs__search", `[1]`)
	testboil.FailTestIfDiff(t, code, exitUsage)

	code, _ = runCLI(t, ctx, "-config", cfg, "call")
	testboil.FailTestIfDiff(t, code, exitUsage)
}

func TestUsageErrors(t *testing.T) {
	ctx := testContext(t)

	code, _ := runCLI(t, ctx)
	testboil.FailTestIfDiff(t, code, exitUsage)

	code, _ = runCLI(t, ctx, "-config", writeConfig(t), "frobnicate")
	testboil.FailTestIfDiff(t, code, exitUsage)

	code, _ = runCLI(t, ctx, "-config", filepath.Join(t.TempDir(), "missing.json"), "list")
	testboil.FailTestIfDiff(t, code, exitUsage)

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"servers": {"a__b": {"command": "x"}}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	code, _ = runCLI(t, ctx, "-config", bad, "list")
	testboil.FailTestIfDiff(t, code, exitUsage)
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := writeConfig(t)
	ctx, cancel := context.WithCancel(testContext(t))
	done := make(chan int, 1)
	go func() {
		code, _ := runCLI(t, ctx, "-config", cfg, "serve", "-addr", "127.0.0.1:0", "-tools", "docs__*")
		done <- code
	}()
	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case code := <-done:
		testboil.FailTestIfDiff(t, code, exitOK)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
