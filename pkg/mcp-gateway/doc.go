// Package mcpgateway re-exports the tools aggregated by mcpmgr over a single
// Streamable MCP endpoint. Each tool keeps its "<server>__<tool>" name and
// calls are routed to the connection that owns it, so downstream MCP clients
// can reach every configured server through one host.
package mcpgateway
