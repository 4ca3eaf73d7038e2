package mcpmgr

import (
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

const serversKey = "servers"

// Parse validates a JSON or YAML server document of the form
//
//	{"servers": {"<name>": {"command": "...", "args": [...], "env": {...}}
//	                       | {"url": "https://..."}}}
//
// Servers are returned in document order. Validation is all-or-nothing: on
// any problem a *ConfigError is returned and no configuration is produced.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("decode document: %v", err)}
	}
	return fromNode(&doc)
}

// FromMap validates a document that was already decoded into generic Go
// values. Because map iteration order is undefined, servers are ordered by
// name.
func FromMap(doc map[string]any) (*Config, error) {
	if doc == nil {
		return nil, configErrorf(serversKey, "missing required field")
	}
	var node yaml.Node
	if err := node.Encode(doc); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("encode document: %v", err)}
	}
	return fromNode(&node)
}

func fromNode(doc *yaml.Node) (*Config, error) {
	root := doc
	if root.Kind == 0 {
		return nil, configErrorf(serversKey, "missing required field")
	}
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, configErrorf(serversKey, "missing required field")
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, &ConfigError{Reason: "document must be an object"}
	}
	servers := mappingValue(root, serversKey)
	if servers == nil || isNull(servers) {
		return nil, configErrorf(serversKey, "missing required field")
	}
	if servers.Kind != yaml.MappingNode {
		return nil, configErrorf(serversKey, "must be an object, got %s", nodeKind(servers))
	}

	cfg := &Config{Servers: make([]NamedServer, 0, len(servers.Content)/2)}
	seen := make(map[string]struct{}, len(servers.Content)/2)
	for i := 0; i+1 < len(servers.Content); i += 2 {
		name := servers.Content[i].Value
		path := serversKey + "." + name
		if err := validateServerName(path, name); err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			return nil, configErrorf(path, "duplicate server name")
		}
		seen[name] = struct{}{}

		sc, err := parseEntry(path, servers.Content[i+1])
		if err != nil {
			return nil, err
		}
		cfg.Servers = append(cfg.Servers, NamedServer{Name: name, Config: sc})
	}
	return cfg, nil
}

func validateServerName(path, name string) error {
	if strings.TrimSpace(name) == "" {
		return configErrorf(path, "server name must not be empty")
	}
	if strings.Contains(name, NamespaceSeparator) {
		return configErrorf(path, "server name must not contain %q", NamespaceSeparator)
	}
	// "a_"+"__"+"x" would equal "a"+"__"+"_x".
	if strings.HasSuffix(name, "_") {
		return configErrorf(path, "server name must not end with %q", "_")
	}
	return nil
}

func parseEntry(path string, entry *yaml.Node) (ServerConfig, error) {
	if entry.Kind != yaml.MappingNode {
		return nil, configErrorf(path, "entry must be an object, got %s", nodeKind(entry))
	}
	command := mappingValue(entry, "command")
	endpoint := mappingValue(entry, "url")
	switch {
	case command != nil && endpoint != nil:
		return nil, configErrorf(path, "entry must set exactly one of \"command\" or \"url\"")
	case command != nil:
		return parseStdioEntry(path, entry, command)
	case endpoint != nil:
		return parseHTTPEntry(path, entry, endpoint)
	default:
		return nil, configErrorf(path, "entry must set \"command\" (subprocess) or \"url\" (network)")
	}
}

func parseStdioEntry(path string, entry, command *yaml.Node) (*StdioServerConfig, error) {
	cmd, err := scalarString(path+".command", command)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cmd) == "" {
		return nil, configErrorf(path+".command", "must not be empty")
	}
	cfg := &StdioServerConfig{Command: cmd}
	if args := mappingValue(entry, "args"); args != nil && !isNull(args) {
		if args.Kind != yaml.SequenceNode {
			return nil, configErrorf(path+".args", "must be a list of strings, got %s", nodeKind(args))
		}
		cfg.Args = make([]string, 0, len(args.Content))
		for i, a := range args.Content {
			v, err := scalarString(fmt.Sprintf("%s.args[%d]", path, i), a)
			if err != nil {
				return nil, err
			}
			cfg.Args = append(cfg.Args, v)
		}
	}
	env, err := stringMap(path+".env", mappingValue(entry, "env"))
	if err != nil {
		return nil, err
	}
	cfg.Env = env
	if envFile := mappingValue(entry, "envfile"); envFile != nil && !isNull(envFile) {
		v, err := scalarString(path+".envfile", envFile)
		if err != nil {
			return nil, err
		}
		cfg.EnvFile = v
	}
	return cfg, nil
}

func parseHTTPEntry(path string, entry, endpoint *yaml.Node) (*HTTPServerConfig, error) {
	raw, err := scalarString(path+".url", endpoint)
	if err != nil {
		return nil, err
	}
	if err := validateEndpoint(raw); err != nil {
		return nil, configErrorf(path+".url", "%v", err)
	}
	cfg := &HTTPServerConfig{Endpoint: raw}
	headers, err := stringMap(path+".headers", mappingValue(entry, "headers"))
	if err != nil {
		return nil, err
	}
	cfg.Headers = headers
	if kind := mappingValue(entry, "transport"); kind != nil && !isNull(kind) {
		v, err := scalarString(path+".transport", kind)
		if err != nil {
			return nil, err
		}
		switch HTTPTransportKind(v) {
		case HTTPTransportAuto, HTTPTransportStreamable, HTTPTransportSSE:
			cfg.Transport = HTTPTransportKind(v)
		default:
			return nil, configErrorf(path+".transport", "unsupported value %q (want %q or %q)", v, HTTPTransportStreamable, HTTPTransportSSE)
		}
	}
	return cfg, nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	return nil
}

func stringMap(path string, n *yaml.Node) (map[string]string, error) {
	if n == nil || isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, configErrorf(path, "must be an object of strings, got %s", nodeKind(n))
	}
	out := make(map[string]string, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		v, err := scalarString(path+"."+key, n.Content[i+1])
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func scalarString(path string, n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode || isNull(n) {
		return "", configErrorf(path, "must be a string, got %s", nodeKind(n))
	}
	return n.Value, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "object"
	case yaml.SequenceNode:
		return "list"
	case yaml.ScalarNode:
		if isNull(n) {
			return "null"
		}
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}
