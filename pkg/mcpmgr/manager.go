package mcpmgr

import (
	"context"
	"errors"
	"log/slog"
)

// ConnectionStatus represents the lifecycle of a managed connection.
type ConnectionStatus string

const (
	StatusNotAttempted ConnectionStatus = "not-attempted"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusFailed       ConnectionStatus = "failed"
)

// Manager owns one Client per successfully connected server.
//
// Manager is not safe for concurrent use: ConnectAll and CloseAll must be
// driven from a single control flow and must not overlap with in-flight
// invocations. Invocations themselves may run concurrently.
type Manager struct {
	options ManagerOptions

	clients map[string]*Client
	order   []string
	status  map[string]ConnectionStatus
}

// NewManager constructs an empty Manager. Nil options fall back to defaults.
func NewManager(opts *ManagerOptions) *Manager {
	return &Manager{
		options: opts.normalized(),
		clients: make(map[string]*Client),
		status:  make(map[string]ConnectionStatus),
	}
}

// ConnectAll connects every server in cfg sequentially in document order.
// Servers that are already connected are skipped. Failures never abort the
// loop: each one is returned as a *ConnectError and logged once after all
// attempts finish.
func (m *Manager) ConnectAll(ctx context.Context, cfg *Config) []*ConnectError {
	var failures []*ConnectError
	for _, srv := range cfg.servers() {
		if _, ok := m.clients[srv.Name]; ok {
			continue
		}
		if err := m.connect(ctx, srv); err != nil {
			failures = append(failures, err)
		}
	}
	m.options.Metrics.setConnected(len(m.clients))
	m.reportFailures(failures)
	return failures
}

func (m *Manager) connect(ctx context.Context, srv NamedServer) *ConnectError {
	kind := TransportOf(srv.Config)
	m.status[srv.Name] = StatusConnecting

	fail := func(err error, stderr string) *ConnectError {
		m.status[srv.Name] = StatusFailed
		m.options.Metrics.connectAttempt(srv.Name, kind, err)
		return &ConnectError{Server: srv.Name, Transport: kind, Err: err, Stderr: stderr}
	}

	if err := validateServerName("servers."+srv.Name, srv.Name); err != nil {
		return fail(err, "")
	}
	transport, err := NewTransport(srv.Name, srv.Config)
	if err != nil {
		return fail(err, "")
	}
	client := NewClient(srv.Name, transport, &m.options)
	tools, err := client.Connect(ctx)
	if err != nil {
		return fail(err, client.Stderr())
	}

	m.clients[srv.Name] = client
	m.order = append(m.order, srv.Name)
	m.status[srv.Name] = StatusConnected
	m.options.Metrics.connectAttempt(srv.Name, kind, nil)
	m.options.Logger.Info("connected MCP server",
		slog.String("server", srv.Name),
		slog.String("transport", string(kind)),
		slog.Int("tools", len(tools)))
	return nil
}

func (m *Manager) reportFailures(failures []*ConnectError) {
	for _, f := range failures {
		attrs := []any{
			slog.String("server", f.Server),
			slog.String("transport", string(f.Transport)),
			slog.Any("error", f.Err),
		}
		if f.Stderr != "" {
			attrs = append(attrs, slog.String("stderr", f.Stderr))
		}
		m.options.Logger.Warn("MCP server unavailable, skipping", attrs...)
	}
}

// GetTools aggregates the tools of all connected servers. The registry is
// rebuilt on every call.
func (m *Manager) GetTools() Registry {
	reg := make(Registry)
	for _, name := range m.order {
		client := m.clients[name]
		for _, t := range client.Tools() {
			reg[ToolName(name, t.Name)] = Tool{ToolDescriptor: t, client: client}
		}
	}
	return reg
}

// GetToolSummary lists (server, tool) pairs, servers in connect order and
// tools in the order each server reported them.
func (m *Manager) GetToolSummary() []ToolRef {
	var refs []ToolRef
	for _, name := range m.order {
		for _, t := range m.clients[name].Tools() {
			refs = append(refs, ToolRef{Server: name, Tool: t.Name})
		}
	}
	return refs
}

// ServerCount returns the number of connected servers.
func (m *Manager) ServerCount() int { return len(m.clients) }

// ServerNames returns connected server names in connect order.
func (m *Manager) ServerNames() []string {
	return append([]string(nil), m.order...)
}

// Client returns the connected client for name.
func (m *Manager) Client(name string) (*Client, bool) {
	c, ok := m.clients[name]
	return c, ok
}

// Status reports where name is in its connection lifecycle.
func (m *Manager) Status(name string) ConnectionStatus {
	if s, ok := m.status[name]; ok {
		return s
	}
	return StatusNotAttempted
}

// CloseAll closes every connection in reverse connect order. Close failures
// are logged and otherwise ignored. Calling it again is a no-op.
func (m *Manager) CloseAll() {
	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		if err := m.clients[name].Close(); err != nil && !errors.Is(err, ErrNotConnected) {
			m.options.Logger.Warn("closing MCP server failed",
				slog.String("server", name),
				slog.Any("error", err))
		}
		delete(m.clients, name)
	}
	m.order = nil
	m.status = make(map[string]ConnectionStatus)
	m.options.Metrics.setConnected(0)
}

func (c *Config) servers() []NamedServer {
	if c == nil {
		return nil
	}
	return c.Servers
}
