// Package toolbridge adapts an mcpmgr.Registry to the Anthropic Messages API:
// it renders the registry as tool definitions and turns tool_use blocks into
// tool_result blocks by invoking the owning MCP server.
package toolbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/vikashloomba/mcp-tool-manager-go/pkg/mcpmgr"
)

// AnthropicTools returns the registry's tools as API tool definitions, ordered
// by namespaced name.
func AnthropicTools(reg mcpmgr.Registry) []anthropic.ToolUnionParam {
	names := reg.Names()
	out := make([]anthropic.ToolUnionParam, 0, len(names))
	for _, name := range names {
		tool := reg[name]
		def := &anthropic.ToolParam{
			Name:        name,
			InputSchema: InputSchema(tool.InputSchema),
		}
		if tool.Description != "" {
			def.Description = param.NewOpt(tool.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: def})
	}
	return out
}

// InputSchema converts a raw JSON Schema into the API's input schema. Only
// properties and required are carried over; anything unparsable yields an
// empty object schema.
func InputSchema(raw json.RawMessage) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{}
	if len(raw) == 0 {
		return schema
	}
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return schema
	}
	if props, ok := parsed["properties"]; ok {
		schema.Properties = props
	}
	if req, ok := parsed["required"].([]any); ok {
		required := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
		schema.Required = required
	}
	return schema
}

// RunToolUse invokes the named tool with the model-supplied input and wraps
// the outcome as a tool_result block. Failures are reported to the model as
// error results rather than returned.
func RunToolUse(ctx context.Context, reg mcpmgr.Registry, id, name string, input json.RawMessage) anthropic.ContentBlockParamUnion {
	args, err := decodeInput(input)
	if err != nil {
		return anthropic.NewToolResultBlock(id, fmt.Sprintf("error: %s", err.Error()), true)
	}
	res, err := reg.Invoke(ctx, name, args)
	if err != nil {
		return anthropic.NewToolResultBlock(id, fmt.Sprintf("error: %s", err.Error()), true)
	}
	return anthropic.NewToolResultBlock(id, ResultText(res), res.IsError)
}

// RunToolUses executes every tool_use block in content, in order, and returns
// the matching tool_result blocks.
func RunToolUses(ctx context.Context, reg mcpmgr.Registry, content []anthropic.ContentBlockUnion) []anthropic.ContentBlockParamUnion {
	var results []anthropic.ContentBlockParamUnion
	for _, block := range content {
		if block.Type != "tool_use" {
			continue
		}
		results = append(results, RunToolUse(ctx, reg, block.ID, block.Name, block.Input))
	}
	return results
}

// ResultText flattens a tool result into plain text. Text parts are joined
// by newlines; other content is rendered as JSON.
func ResultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	parts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
			continue
		}
		data, err := json.Marshal(c)
		if err != nil {
			continue
		}
		parts = append(parts, string(data))
	}
	if len(parts) == 0 && res.StructuredContent != nil {
		if data, err := json.Marshal(res.StructuredContent); err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}

func decodeInput(input json.RawMessage) (map[string]any, error) {
	if len(input) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("tool input must be a JSON object: %w", err)
	}
	return args, nil
}
