package mcpmgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Transport is the raw duplex channel to one tool server. Each value is
// opened at most once and owns whatever it allocated until Close.
type Transport interface {
	// Kind reports the transport family.
	Kind() ConfigTransport
	// Open establishes the channel. It does not perform the MCP handshake.
	Open(ctx context.Context) (mcp.Connection, error)
	// Close releases the channel. It is idempotent and safe to call when
	// Open failed or was never called.
	Close()
}

// NewTransport builds the Transport described by cfg.
func NewTransport(serverID string, cfg ServerConfig) (Transport, error) {
	switch c := cfg.(type) {
	case *StdioServerConfig:
		if c == nil {
			break
		}
		return NewSubprocessTransport(serverID, c), nil
	case *HTTPServerConfig:
		if c == nil {
			break
		}
		return NewNetworkTransport(serverID, c), nil
	}
	return nil, fmt.Errorf("mcpmgr: unsupported config for %q", serverID)
}

// NewSDKTransport adapts any go-sdk transport, such as one half of
// mcp.NewInMemoryTransports, to the Transport interface.
func NewSDKTransport(t mcp.Transport) Transport {
	return &sdkTransport{delegate: t}
}

type sdkTransport struct {
	delegate mcp.Transport
	conns    connHolder
}

func (t *sdkTransport) Kind() ConfigTransport { return TransportSDK }

func (t *sdkTransport) Open(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.delegate.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return t.conns.hold(conn), nil
}

func (t *sdkTransport) Close() { t.conns.close() }

// connHolder remembers the connection handed out by Open so Close can release
// it even when the session that was using it never got created.
type connHolder struct {
	mu   sync.Mutex
	conn *onceConn
}

func (h *connHolder) hold(conn mcp.Connection) *onceConn {
	oc := &onceConn{delegate: conn}
	h.mu.Lock()
	h.conn = oc
	h.mu.Unlock()
	return oc
}

func (h *connHolder) close() {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// onceConn closes its delegate exactly once; the session and the transport
// both hold it.
type onceConn struct {
	delegate mcp.Connection
	once     sync.Once
	err      error
}

func (c *onceConn) SessionID() string { return c.delegate.SessionID() }

func (c *onceConn) Read(ctx context.Context) (jsonrpc.Message, error) {
	return c.delegate.Read(ctx)
}

func (c *onceConn) Write(ctx context.Context, msg jsonrpc.Message) error {
	return c.delegate.Write(ctx, msg)
}

func (c *onceConn) Close() error {
	c.once.Do(func() { c.err = c.delegate.Close() })
	return c.err
}

// sessionTransport presents an opened-on-demand Transport to mcp.Client.
type sessionTransport struct {
	transport Transport
	wrap      func(mcp.Connection) mcp.Connection
}

func (s *sessionTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := s.transport.Open(ctx)
	if err != nil {
		return nil, err
	}
	if s.wrap != nil {
		return s.wrap(conn), nil
	}
	return conn, nil
}
