package mcpmgr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConnected is returned when a client is used before Connect
	// succeeded or after Close.
	ErrNotConnected = errors.New("mcpmgr: server not connected")

	// ErrAlreadyConnected is returned when Connect is called twice on the
	// same client.
	ErrAlreadyConnected = errors.New("mcpmgr: server already connected")

	// ErrUnknownTool is returned when an invocation names a tool that the
	// server did not report in its most recent discovery response.
	ErrUnknownTool = errors.New("mcpmgr: unknown tool")

	// ErrInvalidArguments is returned when argument validation is enabled and
	// the arguments do not satisfy the tool's input schema.
	ErrInvalidArguments = errors.New("mcpmgr: invalid tool arguments")
)

// ConfigError reports a malformed server document. Path locates the
// offending node, e.g. "servers.web.url".
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "mcpmgr: invalid config: " + e.Reason
	}
	return fmt.Sprintf("mcpmgr: invalid config: %s: %s", e.Path, e.Reason)
}

func configErrorf(path, format string, args ...any) *ConfigError {
	return &ConfigError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// ConnectError records a failed attempt to attach one server. It is returned
// as a value by Manager.ConnectAll and never raised.
type ConnectError struct {
	Server    string
	Transport ConfigTransport
	Err       error
	// Stderr holds the tail of a subprocess's standard error, if any.
	Stderr string
}

func (e *ConnectError) Error() string {
	msg := fmt.Sprintf("mcpmgr: connect %q (%s): %v", e.Server, e.Transport, e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": stderr: " + firstLine(stderr)
	}
	return msg
}

func (e *ConnectError) Unwrap() error { return e.Err }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
