package mcpmgr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object"}`)

// Client is a protocol session with one tool server: handshake, discovery and
// invocation over a single Transport. Invoke may be called concurrently.
type Client struct {
	name      string
	transport Transport
	opts      ManagerOptions
	logger    *slog.Logger

	// lifecycle serializes Connect and Close.
	lifecycle sync.Mutex

	mu      sync.RWMutex
	session *mcp.ClientSession
	closed  bool
	tools   []ToolDescriptor
	byName  map[string]int
	schemas map[string]*jsonschema.Resolved
}

// NewClient binds a not-yet-connected client to transport. Nil opts fall back
// to defaults.
func NewClient(name string, transport Transport, opts *ManagerOptions) *Client {
	o := opts.normalized()
	return &Client{
		name:      name,
		transport: transport,
		opts:      o,
		logger:    o.Logger.With(slog.String("server", name)),
	}
}

// ServerName returns the configured server name.
func (c *Client) ServerName() string { return c.name }

// Transport returns the transport the client was built with.
func (c *Client) Transport() Transport { return c.transport }

// Connected reports whether a session is established.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil
}

// Stderr returns captured subprocess stderr, or "" for network transports.
func (c *Client) Stderr() string {
	if s, ok := c.transport.(interface{ Stderr() string }); ok {
		return s.Stderr()
	}
	return ""
}

// Connect opens the transport, performs the initialization handshake and
// discovers the server's tools. On any failure everything opened so far is
// released and the client stays disconnected.
func (c *Client) Connect(ctx context.Context) ([]ToolDescriptor, error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.RLock()
	connected, closed := c.session != nil, c.closed
	c.mu.RUnlock()
	if connected {
		return nil, ErrAlreadyConnected
	}
	if closed {
		return nil, fmt.Errorf("%w: client closed", ErrNotConnected)
	}

	if c.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()
	}

	impl := &mcp.Implementation{Name: c.opts.ClientName, Version: c.opts.ClientVersion}
	client := mcp.NewClient(impl, &mcp.ClientOptions{
		ToolListChangedHandler: func(context.Context, *mcp.ToolListChangedRequest) {
			c.logger.Info("server reported tool list change")
		},
	})
	st := &sessionTransport{
		transport: c.transport,
		wrap:      rpcWrapper(c.name, resolveRPCLogger(c.opts)),
	}
	session, err := client.Connect(ctx, st, nil)
	if err != nil {
		c.transport.Close()
		return nil, err
	}

	tools, err := c.discover(ctx, session)
	if err != nil {
		_ = session.Close()
		c.transport.Close()
		return nil, fmt.Errorf("discover tools: %w", err)
	}

	c.mu.Lock()
	c.session = session
	c.setToolsLocked(tools)
	c.mu.Unlock()
	return cloneTools(tools), nil
}

func (c *Client) discover(ctx context.Context, session *mcp.ClientSession) ([]ToolDescriptor, error) {
	var tools []ToolDescriptor
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, err
		}
		schema := emptyObjectSchema
		if tool.InputSchema != nil {
			raw, err := json.Marshal(tool.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("encode schema of %q: %w", tool.Name, err)
			}
			schema = raw
		}
		tools = append(tools, ToolDescriptor{
			Server:      c.name,
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return tools, nil
}

func (c *Client) setToolsLocked(tools []ToolDescriptor) {
	c.tools = tools
	c.byName = make(map[string]int, len(tools))
	for i, t := range tools {
		c.byName[t.Name] = i
	}
	c.schemas = nil
	if !c.opts.ValidateArguments {
		return
	}
	c.schemas = make(map[string]*jsonschema.Resolved, len(tools))
	for _, t := range tools {
		var s jsonschema.Schema
		if err := json.Unmarshal(t.InputSchema, &s); err != nil {
			c.logger.Debug("tool schema not enforceable", slog.String("tool", t.Name), slog.Any("error", err))
			continue
		}
		resolved, err := s.Resolve(nil)
		if err != nil {
			c.logger.Debug("tool schema not enforceable", slog.String("tool", t.Name), slog.Any("error", err))
			continue
		}
		c.schemas[t.Name] = resolved
	}
}

// Tools returns the most recently discovered tools in server order.
func (c *Client) Tools() []ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneTools(c.tools)
}

// RefreshTools repeats discovery and replaces the client's tool set.
func (c *Client) RefreshTools(ctx context.Context) ([]ToolDescriptor, error) {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session == nil {
		return nil, ErrNotConnected
	}
	tools, err := c.discover(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("mcpmgr: refresh tools of %q: %w", c.name, err)
	}
	c.mu.Lock()
	c.setToolsLocked(tools)
	c.mu.Unlock()
	return cloneTools(tools), nil
}

// Invoke calls tool with args and returns the server's result unchanged.
// Names the server did not advertise fail with ErrUnknownTool without any
// network traffic. Errors from the server are returned as-is.
func (c *Client) Invoke(ctx context.Context, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	c.mu.RLock()
	session := c.session
	_, known := c.byName[tool]
	resolved := c.schemas[tool]
	c.mu.RUnlock()
	if session == nil {
		return nil, ErrNotConnected
	}
	if !known {
		return nil, fmt.Errorf("%w: %q on server %q", ErrUnknownTool, tool, c.name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if resolved != nil {
		if err := validateArgs(resolved, args); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, tool, err)
		}
	}

	logger := c.logger.With(slog.String("tool", tool), slog.String("call_id", uuid.NewString()))
	logger.Debug("invoking tool")
	started := time.Now()
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	c.opts.Metrics.invocation(c.name, tool, started, err)
	if err != nil {
		logger.Debug("tool invocation failed", slog.Any("error", err))
		return nil, err
	}
	logger.Debug("tool invocation finished",
		slog.Bool("is_error", res.IsError),
		slog.Duration("elapsed", time.Since(started)))
	return res, nil
}

// validateArgs checks args in their JSON form so Go numeric types compare
// like the decoded numbers a server would see.
func validateArgs(schema *jsonschema.Resolved, args map[string]any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var instance map[string]any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return err
	}
	return schema.Validate(instance)
}

// Close ends the session and releases the transport. Calling it again, or on
// a client that never connected, is a no-op.
func (c *Client) Close() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	session := c.session
	c.session = nil
	c.mu.Unlock()

	var err error
	if session != nil {
		err = session.Close()
	}
	c.transport.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcpmgr: close %q: %w", c.name, err)
	}
	return nil
}

func cloneTools(tools []ToolDescriptor) []ToolDescriptor {
	if tools == nil {
		return nil
	}
	return append([]ToolDescriptor(nil), tools...)
}
