// Package mcpmgr connects a command-line LLM client to a set of Model Context
// Protocol (MCP) tool servers and exposes their tools through one registry.
//
// # Core entry points
//
//   - Parse and FromMap validate a {"servers": {...}} document into a Config.
//     Each entry either launches a subprocess (command, args, env, envfile)
//     or dials a URL (url, headers, transport). Validation is all-or-nothing.
//   - Manager connects every configured server sequentially with
//     ConnectAll. A server that fails to spawn, dial, handshake or list its
//     tools is reported as a *ConnectError and skipped; the others stay usable.
//   - GetTools returns a Registry keyed by "<server>__<tool>" so that tools
//     with the same raw name on different servers never collide.
//   - CloseAll terminates subprocesses and network streams. Callers must run
//     it before exit on every path.
//
// Lower-level pieces are exported for hosts that need them: Transport with
// SubprocessTransport and NetworkTransport, Client for a single session, and
// Metrics for Prometheus counters. Use TransportOf, IsStdio/IsHTTP and
// AsStdio/AsHTTP to branch on a ServerConfig without a type switch.
package mcpmgr
