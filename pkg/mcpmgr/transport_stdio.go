package mcpmgr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const stderrTailLimit = 8 << 10

// SubprocessTransport spawns an MCP server and talks to it over the child's
// stdin/stdout. The child's stderr is captured separately and never reaches
// the protocol stream.
type SubprocessTransport struct {
	serverID string
	cfg      StdioServerConfig

	stderr *tailBuffer
	conns  connHolder

	mu  sync.Mutex
	cmd *exec.Cmd
}

var _ Transport = (*SubprocessTransport)(nil)

// NewSubprocessTransport prepares, but does not start, the subprocess for cfg.
func NewSubprocessTransport(serverID string, cfg *StdioServerConfig) *SubprocessTransport {
	return &SubprocessTransport{
		serverID: serverID,
		cfg:      *cfg,
		stderr:   newTailBuffer(stderrTailLimit),
	}
}

func (t *SubprocessTransport) Kind() ConfigTransport { return TransportStdio }

// Open starts the subprocess. It fails when the binary cannot be found or
// executed, or when the configured envfile cannot be read.
func (t *SubprocessTransport) Open(ctx context.Context) (mcp.Connection, error) {
	cmd, err := t.buildCommand()
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.cmd = cmd
	t.mu.Unlock()

	conn, err := (&mcp.CommandTransport{Command: cmd}).Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("start %q: %w", t.cfg.Command, err)
	}
	return t.conns.hold(conn), nil
}

func (t *SubprocessTransport) buildCommand() (*exec.Cmd, error) {
	if t.cfg.Command == "" {
		return nil, fmt.Errorf("mcpmgr: command missing for %q", t.serverID)
	}
	fileEnv, err := loadEnvFile(t.cfg.EnvFile)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(t.cfg.Command, t.cfg.Args...)
	if len(fileEnv) > 0 || len(t.cfg.Env) > 0 {
		env := os.Environ()
		env = appendEnv(env, fileEnv)
		env = appendEnv(env, t.cfg.Env)
		cmd.Env = env
	}
	cmd.Stderr = t.stderr
	return cmd, nil
}

// appendEnv adds vars in key order; later entries win in exec.Cmd.
func appendEnv(env []string, vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, vars[k]))
	}
	return env
}

// Close shuts the connection and kills the child if it is still running.
// It is safe after the child exited on its own.
func (t *SubprocessTransport) Close() {
	t.conns.close()
	t.mu.Lock()
	cmd := t.cmd
	t.mu.Unlock()
	if cmd != nil && cmd.Process != nil && cmd.ProcessState == nil {
		_ = cmd.Process.Kill()
	}
}

// Stderr returns the most recent output the child wrote to standard error.
func (t *SubprocessTransport) Stderr() string {
	return t.stderr.String()
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
