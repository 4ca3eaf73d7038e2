package mcpgateway

import (
	"bytes"
	"encoding/json"
	"maps"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/vikashloomba/mcp-tool-manager-go/pkg/mcpmgr"
)

const (
	metaKeyServerID   = "mcpgateway.server_id"
	metaKeyNativeName = "mcpgateway.native_name"
)

// toolIndex remembers which registry entries are currently exported so a
// resync only touches tools that appeared, vanished or changed.
type toolIndex struct {
	mu    sync.RWMutex
	tools map[string]mcpmgr.Tool
}

type toolRegistration struct {
	Tool   *mcp.Tool
	Target mcpmgr.Tool
}

func newToolIndex() *toolIndex {
	return &toolIndex{tools: make(map[string]mcpmgr.Tool)}
}

// Update diffs reg against the exported set. Changed tools appear in both
// removed and added.
func (x *toolIndex) Update(reg mcpmgr.Registry) (removed []string, added []toolRegistration) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for name, old := range x.tools {
		cur, ok := reg[name]
		if ok && sameTool(old, cur) {
			continue
		}
		removed = append(removed, name)
		delete(x.tools, name)
	}
	for _, name := range reg.Names() {
		if _, ok := x.tools[name]; ok {
			continue
		}
		t := reg[name]
		x.tools[name] = t
		added = append(added, toolRegistration{Tool: exportTool(name, t), Target: t})
	}
	sort.Strings(removed)
	return removed, added
}

// Lookup returns the registry entry exported under name.
func (x *toolIndex) Lookup(name string) (mcpmgr.Tool, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	t, ok := x.tools[name]
	return t, ok
}

// Names lists exported tool names in lexical order.
func (x *toolIndex) Names() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	names := make([]string, 0, len(x.tools))
	for name := range x.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sameTool(a, b mcpmgr.Tool) bool {
	return a.Client() == b.Client() &&
		a.Description == b.Description &&
		bytes.Equal(a.InputSchema, b.InputSchema)
}

func exportTool(name string, t mcpmgr.Tool) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: t.Description,
		InputSchema: objectSchema(t.InputSchema),
		Meta: withMeta(nil, map[string]any{
			metaKeyServerID:   t.Server,
			metaKeyNativeName: t.Name,
		}),
	}
}

// objectSchema decodes raw, falling back to an open object schema when the
// upstream schema is missing or not an object schema.
func objectSchema(raw json.RawMessage) map[string]any {
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil || schema["type"] != "object" {
		return map[string]any{"type": "object"}
	}
	return schema
}

func withMeta(base map[string]any, extras map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any)
	}
	for k, v := range extras {
		out[k] = v
	}
	return out
}
