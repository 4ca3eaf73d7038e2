package mcpgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/cors"
	"github.com/vikashloomba/mcp-tool-manager-go/pkg/mcpmgr"
)

// ToolSource supplies the registry to export. *mcpmgr.Manager implements it.
type ToolSource interface {
	GetTools() mcpmgr.Registry
}

// Gateway exposes a Streamable MCP server that re-exports every tool of a
// ToolSource under its namespaced name and routes calls to the owning server.
type Gateway struct {
	source ToolSource
	opts   Options

	index *toolIndex

	server        *mcp.Server
	streamHandler *mcp.StreamableHTTPHandler
	mux           *http.ServeMux
	httpHandler   http.Handler

	serverMu     sync.Mutex
	httpServerMu sync.Mutex
	httpServer   *http.Server
}

// NewGateway builds a Gateway and exports the source's current tools.
func NewGateway(src ToolSource, opts *Options) (*Gateway, error) {
	if src == nil {
		return nil, fmt.Errorf("mcpgateway: tool source is required")
	}
	options := opts.withDefaults()
	g := &Gateway{
		source: src,
		opts:   options,
		index:  newToolIndex(),
	}

	g.server = mcp.NewServer(options.Implementation, &mcp.ServerOptions{HasTools: true})
	g.streamHandler = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return g.server
	}, &options.Streamable)
	g.mux = g.mountHandler()
	g.httpHandler = cors.New(cors.Options{
		AllowedOrigins: options.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
	}).Handler(g.mux)

	if err := g.Sync(); err != nil {
		return nil, err
	}
	return g, nil
}

// Handler exposes the CORS-wrapped HTTP handler that serves the Streamable
// endpoint and any extra routes.
func (g *Gateway) Handler() http.Handler {
	return g.httpHandler
}

// ServeMux returns the underlying mux so callers can add routes.
func (g *Gateway) ServeMux() *http.ServeMux {
	return g.mux
}

// ToolNames lists the tools currently exported.
func (g *Gateway) ToolNames() []string {
	return g.index.Names()
}

// Sync re-reads the source's registry and updates the exported tool set.
// It must not run concurrently with changes to the source.
func (g *Gateway) Sync() error {
	reg := g.source.GetTools()
	if len(g.opts.Tools) > 0 {
		selected, err := reg.Select(g.opts.Tools...)
		if err != nil {
			return fmt.Errorf("mcpgateway: %w", err)
		}
		reg = selected
	}
	removed, added := g.index.Update(reg)

	g.serverMu.Lock()
	defer g.serverMu.Unlock()
	if len(removed) > 0 {
		g.server.RemoveTools(removed...)
	}
	for _, r := range added {
		g.server.AddTool(r.Tool, g.makeToolHandler(r.Tool.Name))
	}
	if len(removed) > 0 || len(added) > 0 {
		g.opts.Logger.Info("gateway tools synced",
			slog.Int("added", len(added)),
			slog.Int("removed", len(removed)))
	}
	return nil
}

// makeToolHandler resolves name through the index on every call so a Sync
// that replaced or dropped the tool takes effect for in-flight sessions.
func (g *Gateway) makeToolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, ok := g.index.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("mcpgateway: %w: %q", mcpmgr.ErrUnknownTool, name)
		}
		var raw any
		if req != nil && req.Params != nil {
			raw = req.Params.Arguments
		}
		args, err := decodeArguments(raw)
		if err != nil {
			return nil, fmt.Errorf("mcpgateway: %s: %w", target.Name, err)
		}
		return target.Invoke(ctx, args)
	}
}

// decodeArguments normalizes the wire arguments into a JSON object.
func decodeArguments(raw any) (map[string]any, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("arguments must be an object: %w", err)
	}
	return args, nil
}

// ListenAndServe runs an HTTP server until the provided context is cancelled or
// the server stops.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	g.httpServerMu.Lock()
	if g.httpServer != nil {
		serv := g.httpServer
		g.httpServerMu.Unlock()
		return fmt.Errorf("mcpgateway: server already running on %s", serv.Addr)
	}
	srv := &http.Server{Addr: g.opts.Addr, Handler: g.Handler()}
	g.httpServer = srv
	g.httpServerMu.Unlock()
	defer func() {
		g.httpServerMu.Lock()
		if g.httpServer == srv {
			g.httpServer = nil
		}
		g.httpServerMu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.opts.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the embedded HTTP server if it is running.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.httpServerMu.Lock()
	srv := g.httpServer
	g.httpServer = nil
	g.httpServerMu.Unlock()
	if srv == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return srv.Shutdown(ctx)
}

func (g *Gateway) mountHandler() *http.ServeMux {
	path := g.opts.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	mux := http.NewServeMux()
	mux.Handle(path, g.streamHandler)
	if !strings.HasSuffix(path, "/") {
		mux.Handle(path+"/", g.streamHandler)
	}
	for route, h := range g.opts.Routes {
		mux.Handle(route, h)
	}
	return mux
}
