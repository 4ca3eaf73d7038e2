package mcpmgr

import (
	"context"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// loggingConnection reports every JSON-RPC message that crosses conn.
type loggingConnection struct {
	serverID string
	delegate mcp.Connection
	logger   RPCLogger
	mu       sync.Mutex
}

func (c *loggingConnection) SessionID() string { return c.delegate.SessionID() }

func (c *loggingConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	msg, err := c.delegate.Read(ctx)
	if err == nil {
		c.emit(RPCDirectionReceive, msg)
	}
	return msg, err
}

func (c *loggingConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if err := c.delegate.Write(ctx, msg); err != nil {
		return err
	}
	c.emit(RPCDirectionSend, msg)
	return nil
}

func (c *loggingConnection) Close() error { return c.delegate.Close() }

func (c *loggingConnection) emit(direction RPCDirection, msg jsonrpc.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	encoded, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		encoded = []byte(err.Error())
	}
	c.logger(RPCLogEvent{Direction: direction, Message: encoded, ServerID: c.serverID})
}

// resolveRPCLogger picks the JSON-RPC trace sink: a custom RPCLogger wins,
// then LogJSONRPC routes frames to the slog logger at debug level.
func resolveRPCLogger(opts ManagerOptions) RPCLogger {
	if opts.RPCLogger != nil {
		return opts.RPCLogger
	}
	if !opts.LogJSONRPC {
		return nil
	}
	logger := opts.Logger
	return func(event RPCLogEvent) {
		logger.Debug("mcp jsonrpc",
			slog.String("server", event.ServerID),
			slog.String("direction", string(event.Direction)),
			slog.String("message", string(event.Message)))
	}
}

// rpcWrapper returns the connection decorator for serverID, or nil when
// tracing is off.
func rpcWrapper(serverID string, logger RPCLogger) func(mcp.Connection) mcp.Connection {
	if logger == nil {
		return nil
	}
	return func(conn mcp.Connection) mcp.Connection {
		return &loggingConnection{serverID: serverID, delegate: conn, logger: logger}
	}
}
