package mcpmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NamespaceSeparator joins a server name and a raw tool name.
const NamespaceSeparator = "__"

// ToolName returns the namespaced name under which server's tool is exposed.
func ToolName(server, tool string) string {
	return server + NamespaceSeparator + tool
}

// SplitToolName reverses ToolName. Server names never contain the separator
// and never end in '_', so the first occurrence is the boundary.
func SplitToolName(name string) (server, tool string, ok bool) {
	return strings.Cut(name, NamespaceSeparator)
}

// ToolDescriptor is one tool as reported by a server's discovery response.
type ToolDescriptor struct {
	Server      string
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolRef is a lightweight (server, tool) pair.
type ToolRef struct {
	Server string
	Tool   string
}

// Tool is a registry entry bound to the client that owns it.
type Tool struct {
	ToolDescriptor
	client *Client
}

// Invoke calls the tool on its owning server.
func (t Tool) Invoke(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	if t.client == nil {
		return nil, ErrNotConnected
	}
	return t.client.Invoke(ctx, t.Name, args)
}

// Client returns the owning client.
func (t Tool) Client() *Client { return t.client }

// Registry maps namespaced tool names to invocable tools.
type Registry map[string]Tool

// Invoke dispatches a call by namespaced name.
func (r Registry) Invoke(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	tool, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return tool.Invoke(ctx, args)
}

// Names returns the namespaced tool names in lexical order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary lists the registry's (server, tool) pairs ordered by namespaced name.
func (r Registry) Summary() []ToolRef {
	names := r.Names()
	refs := make([]ToolRef, 0, len(names))
	for _, name := range names {
		t := r[name]
		refs = append(refs, ToolRef{Server: t.Server, Tool: t.Name})
	}
	return refs
}

// Select returns the subset whose namespaced names match any of the glob
// patterns, e.g. "github__*". No patterns selects everything.
func (r Registry) Select(patterns ...string) (Registry, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("mcpmgr: invalid tool pattern %q", p)
		}
	}
	out := make(Registry, len(r))
	for name, tool := range r {
		if len(patterns) == 0 {
			out[name] = tool
			continue
		}
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, name); ok {
				out[name] = tool
				break
			}
		}
	}
	return out, nil
}
