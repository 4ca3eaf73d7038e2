package mcpmgr

import (
	"log/slog"
	"time"
)

// RPCDirection represents the direction of an observed JSON-RPC message.
type RPCDirection string

const (
	RPCDirectionSend    RPCDirection = "send"
	RPCDirectionReceive RPCDirection = "receive"
)

// RPCLogEvent encapsulates JSON-RPC traffic for custom logging.
type RPCLogEvent struct {
	Direction RPCDirection
	Message   []byte
	ServerID  string
}

// RPCLogger is invoked for each JSON-RPC message when logging is enabled.
type RPCLogger func(RPCLogEvent)

// StdioServerConfig describes an MCP server launched as a subprocess that
// speaks the protocol over its stdin/stdout.
type StdioServerConfig struct {
	Command string
	Args    []string
	Env     map[string]string
	// EnvFile names a dotenv file read when the subprocess is spawned. Values
	// from Env take precedence over the file.
	EnvFile string
}

func (c *StdioServerConfig) transport() ConfigTransport { return TransportStdio }

// HTTPServerConfig describes an MCP server reachable over a persistent
// streaming HTTP connection.
type HTTPServerConfig struct {
	Endpoint string
	Headers  map[string]string
	// Transport selects the wire flavour. Empty means streamable HTTP unless
	// the endpoint path ends in "/sse".
	Transport HTTPTransportKind
}

func (c *HTTPServerConfig) transport() ConfigTransport { return TransportHTTP }

// HTTPTransportKind picks between the two HTTP flavours of MCP.
type HTTPTransportKind string

const (
	HTTPTransportAuto       HTTPTransportKind = ""
	HTTPTransportStreamable HTTPTransportKind = "streamable-http"
	HTTPTransportSSE        HTTPTransportKind = "sse"
)

// ServerConfig is implemented by all transport-specific configurations.
// Exactly one variant describes a configured server.
type ServerConfig interface {
	transport() ConfigTransport
}

// NamedServer pairs a server name with its validated transport descriptor.
type NamedServer struct {
	Name   string
	Config ServerConfig
}

// Config is a validated server document. Servers keep document order.
type Config struct {
	Servers []NamedServer
}

// Len returns the number of configured servers.
func (c *Config) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Servers)
}

// Lookup returns the configuration of the named server.
func (c *Config) Lookup(name string) (ServerConfig, bool) {
	if c == nil {
		return nil, false
	}
	for _, s := range c.Servers {
		if s.Name == name {
			return s.Config, true
		}
	}
	return nil, false
}

// ManagerOptions configures a Manager instance.
type ManagerOptions struct {
	// ClientName is advertised to every server during initialization.
	// Defaults to "mcp-tool-manager".
	ClientName string
	// ClientVersion is the semantic version reported to servers.
	ClientVersion string
	// Logger receives connection diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics, when set, records connection and invocation counters.
	Metrics *Metrics
	// ConnectTimeout bounds each server's connect and discovery. Zero means
	// no deadline beyond the caller's context.
	ConnectTimeout time.Duration
	// LogJSONRPC logs every JSON-RPC message at debug level.
	LogJSONRPC bool
	// RPCLogger provides a custom logger for JSON-RPC traffic; it takes
	// precedence over LogJSONRPC.
	RPCLogger RPCLogger
	// ValidateArguments checks invocation arguments against the tool's input
	// schema before sending the call.
	ValidateArguments bool
}

func (o *ManagerOptions) normalized() ManagerOptions {
	var opts ManagerOptions
	if o != nil {
		opts = *o
	}
	if opts.ClientName == "" {
		opts.ClientName = "mcp-tool-manager"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "1.0.0"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}
