// Command mcptools loads an MCP server configuration, connects every server
// it can reach, and lists, calls, or re-serves the aggregated tools.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mcpgateway "github.com/vikashloomba/mcp-tool-manager-go/pkg/mcp-gateway"
	"github.com/vikashloomba/mcp-tool-manager-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-tool-manager-go/pkg/toolbridge"
)

const usage = `mcptools - attach to MCP servers and use their tools

Usage: mcptools [flags] <command> [args]

Commands:
  list                        print every discovered tool as server__tool
  call <server__tool> [json]  invoke one tool with a JSON object of arguments
  serve [-addr :8700] [-tools glob,...]
                              re-export the tools over Streamable HTTP

Flags:
`

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mcptools", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", envOr("MCPTOOLS_CONFIG", "mcp.json"), "path to the servers document (JSON or YAML)")
	verbose := fs.Bool("v", misc.Truthy(os.Getenv("DEBUG")), "verbose logging")
	logRPC := fs.Bool("rpc", false, "log every JSON-RPC message at debug level (implies -v)")
	validate := fs.Bool("validate", false, "validate call arguments against each tool's input schema")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "list", "call", "serve":
	default:
		ancli.PrintErr(fmt.Sprintf("unknown command: %q\n", cmd))
		fs.Usage()
		return exitUsage
	}

	data, err := os.ReadFile(*configPath)
	if err != nil {
		ancli.PrintErr(fmt.Sprintf("failed to read config: %v\n", err))
		return exitUsage
	}
	cfg, err := mcpmgr.Parse(data)
	if err != nil {
		ancli.PrintErr(fmt.Sprintf("invalid config %s: %v\n", *configPath, err))
		return exitUsage
	}

	level := slog.LevelError
	if *verbose || *logRPC {
		level = slog.LevelDebug
	}
	registry := prometheus.NewRegistry()
	manager := mcpmgr.NewManager(&mcpmgr.ManagerOptions{
		ClientName:        "mcptools",
		Logger:            slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
		Metrics:           mcpmgr.NewMetrics(registry),
		LogJSONRPC:        *logRPC,
		ValidateArguments: *validate,
	})
	defer manager.CloseAll()

	for _, failure := range manager.ConnectAll(ctx, cfg) {
		ancli.PrintWarn(fmt.Sprintf("skipping MCP server %q: %v\n", failure.Server, failure))
	}

	switch cmd {
	case "list":
		return listTools(manager, stdout)
	case "call":
		return callTool(ctx, manager, cfg, rest, stdout)
	default:
		return serve(ctx, manager, registry, rest, stderr)
	}
}

func listTools(manager *mcpmgr.Manager, stdout io.Writer) int {
	reg := manager.GetTools()
	for _, name := range reg.Names() {
		if desc := firstLine(reg[name].Description); desc != "" {
			fmt.Fprintf(stdout, "%s\t%s\n", name, desc)
			continue
		}
		fmt.Fprintln(stdout, name)
	}
	return exitOK
}

func callTool(ctx context.Context, manager *mcpmgr.Manager, cfg *mcpmgr.Config, args []string, stdout io.Writer) int {
	if len(args) == 0 || len(args) > 2 {
		ancli.PrintErr("usage: mcptools call <server__tool> [json]\n")
		return exitUsage
	}
	var input map[string]any
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &input); err != nil {
			ancli.PrintErr(fmt.Sprintf("arguments must be a JSON object: %v\n", err))
			return exitUsage
		}
	}
	if server, _, ok := mcpmgr.SplitToolName(args[0]); ok {
		if _, configured := cfg.Lookup(server); configured && manager.Status(server) != mcpmgr.StatusConnected {
			ancli.PrintErr(fmt.Sprintf("call %s: server %q is configured but not connected\n", args[0], server))
			return exitFail
		}
	}
	res, err := manager.GetTools().Invoke(ctx, args[0], input)
	if err != nil {
		ancli.PrintErr(fmt.Sprintf("call %s: %v\n", args[0], err))
		return exitFail
	}
	fmt.Fprintln(stdout, toolbridge.ResultText(res))
	if res.IsError {
		return exitFail
	}
	return exitOK
}

func serve(ctx context.Context, manager *mcpmgr.Manager, registry *prometheus.Registry, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", ":8700", "listen address")
	tools := fs.String("tools", "", "comma separated globs of tools to export, e.g. github__*")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	opts := &mcpgateway.Options{
		Addr:   *addr,
		Routes: map[string]http.Handler{"/metrics": promhttp.HandlerFor(registry, promhttp.HandlerOpts{})},
	}
	if *tools != "" {
		opts.Tools = strings.Split(*tools, ",")
	}
	gateway, err := mcpgateway.NewGateway(manager, opts)
	if err != nil {
		ancli.PrintErr(fmt.Sprintf("failed to build gateway: %v\n", err))
		return exitUsage
	}
	ancli.Okf("serving %d tools on %s/mcp\n", len(gateway.ToolNames()), *addr)
	if err := gateway.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		ancli.PrintErr(fmt.Sprintf("gateway stopped: %v\n", err))
		return exitFail
	}
	return exitOK
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
