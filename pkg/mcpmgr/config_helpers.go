package mcpmgr

// Helpers for narrowing ServerConfig values without a type switch at every
// call site.

// ConfigTransport identifies the transport family used by a ServerConfig.
type ConfigTransport string

const (
	TransportStdio ConfigTransport = "stdio"
	TransportHTTP  ConfigTransport = "http"
	TransportSDK   ConfigTransport = "sdk"
)

// TransportOf returns the transport kind for a ServerConfig.
// Returns an empty string when the value is nil.
func TransportOf(cfg ServerConfig) ConfigTransport {
	if cfg == nil {
		return ""
	}
	switch c := cfg.(type) {
	case *StdioServerConfig:
		if c == nil {
			return ""
		}
	case *HTTPServerConfig:
		if c == nil {
			return ""
		}
	}
	return cfg.transport()
}

// IsStdio reports whether cfg is a *StdioServerConfig.
func IsStdio(cfg ServerConfig) bool {
	_, ok := cfg.(*StdioServerConfig)
	return ok
}

// IsHTTP reports whether cfg is a *HTTPServerConfig.
func IsHTTP(cfg ServerConfig) bool {
	_, ok := cfg.(*HTTPServerConfig)
	return ok
}

// AsStdio narrows cfg to *StdioServerConfig, returning (nil, false) when it
// does not match.
func AsStdio(cfg ServerConfig) (*StdioServerConfig, bool) {
	c, ok := cfg.(*StdioServerConfig)
	return c, ok
}

// AsHTTP narrows cfg to *HTTPServerConfig, returning (nil, false) when it
// does not match.
func AsHTTP(cfg ServerConfig) (*HTTPServerConfig, bool) {
	c, ok := cfg.(*HTTPServerConfig)
	return c, ok
}
