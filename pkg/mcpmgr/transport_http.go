package mcpmgr

import (
	"context"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NetworkTransport talks to a remote MCP server over streamable HTTP or SSE.
// No retry or fallback is attempted: the flavour is chosen once from config.
type NetworkTransport struct {
	serverID string
	cfg      HTTPServerConfig
	client   *http.Client
	conns    connHolder
}

var _ Transport = (*NetworkTransport)(nil)

// NewNetworkTransport prepares a transport for cfg without dialing.
func NewNetworkTransport(serverID string, cfg *HTTPServerConfig) *NetworkTransport {
	return &NetworkTransport{
		serverID: serverID,
		cfg:      *cfg,
		client:   decorateHTTPClient(nil, cfg.Headers),
	}
}

func (t *NetworkTransport) Kind() ConfigTransport { return TransportHTTP }

// UsesSSE reports whether the SSE flavour will be used.
func (t *NetworkTransport) UsesSSE() bool {
	switch t.cfg.Transport {
	case HTTPTransportSSE:
		return true
	case HTTPTransportStreamable:
		return false
	}
	return strings.HasSuffix(strings.TrimSpace(t.cfg.Endpoint), "/sse")
}

// Open dials the endpoint. Unreachable hosts and non-2xx responses fail here
// or during the handshake that follows.
func (t *NetworkTransport) Open(ctx context.Context) (mcp.Connection, error) {
	var delegate mcp.Transport
	if t.UsesSSE() {
		delegate = &mcp.SSEClientTransport{Endpoint: t.cfg.Endpoint, HTTPClient: t.client}
	} else {
		// MaxRetries < 0 disables the SDK's reconnect loop.
		delegate = &mcp.StreamableClientTransport{Endpoint: t.cfg.Endpoint, HTTPClient: t.client, MaxRetries: -1}
	}
	conn, err := delegate.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return t.conns.hold(conn), nil
}

// Close terminates the stream. Safe to call before Open.
func (t *NetworkTransport) Close() { t.conns.close() }

func decorateHTTPClient(base *http.Client, headers map[string]string) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	clone := *base
	if len(headers) == 0 {
		return &clone
	}
	hdr := make(http.Header, len(headers))
	for k, v := range headers {
		hdr.Set(k, v)
	}
	clone.Transport = &headerDecorator{next: defaultRoundTripper(base.Transport), headers: hdr}
	return &clone
}

type headerDecorator struct {
	next    http.RoundTripper
	headers http.Header
}

func (d *headerDecorator) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, values := range d.headers {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return d.next.RoundTrip(req)
}

func defaultRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next != nil {
		return next
	}
	return http.DefaultTransport
}
