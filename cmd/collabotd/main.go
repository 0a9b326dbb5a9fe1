// Command collabotd is the collabot daemon: it loads roles/projects
// configuration, wires the dispatch runtime and its supporting
// subsystems, attaches whichever communication providers are enabled,
// and serves the JSON-RPC socket, MCP tool, and HTTP status surfaces
// until a shutdown signal arrives.
//
// Grounded on cmd/cliaimonitor/main.go's flag-parse -> instance-lock ->
// component-wiring -> serve -> graceful-shutdown shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/collabotd/collabot/internal/config"
	"github.com/collabotd/collabot/internal/dispatch"
	"github.com/collabotd/collabot/internal/dispatchstore"
	"github.com/collabotd/collabot/internal/draft"
	"github.com/collabotd/collabot/internal/httpapi"
	"github.com/collabotd/collabot/internal/instance"
	"github.com/collabotd/collabot/internal/ledger"
	"github.com/collabotd/collabot/internal/mcpserver"
	"github.com/collabotd/collabot/internal/model"
	"github.com/collabotd/collabot/internal/orchestrator"
	"github.com/collabotd/collabot/internal/pool"
	"github.com/collabotd/collabot/internal/providers"
	"github.com/collabotd/collabot/internal/providers/desktopprovider"
	"github.com/collabotd/collabot/internal/providers/natsprovider"
	"github.com/collabotd/collabot/internal/providers/socketprovider"
	"github.com/collabotd/collabot/internal/rpcserver"
	"github.com/collabotd/collabot/internal/rpctools"
	"github.com/collabotd/collabot/internal/runner"
)

func main() {
	dataDir := flag.String("data-dir", "data", "root directory for task/dispatch files, draft.json, and the ledger database")
	rolesPath := flag.String("roles", "configs/roles.yaml", "roles configuration file")
	projectsPath := flag.String("projects", "configs/projects.yaml", "projects configuration file")

	socketAddr := flag.String("socket-addr", ":8787", "JSON-RPC/websocket listen address")
	socketPath := flag.String("socket-path", "/rpc", "JSON-RPC/websocket URL path")
	httpAddr := flag.String("http-addr", ":8788", "operator-facing HTTP status listen address")
	mcpAddr := flag.String("mcp-addr", ":8789", "MCP tool-call listen address, used only by spawned agent subprocesses")

	natsURL := flag.String("nats-url", "", "NATS server URL; empty disables the chat-bridge provider")
	natsOutbound := flag.String("nats-outbound-subject", "collabot.outbound", "NATS subject for outbound lifecycle messages")
	natsInbound := flag.String("nats-inbound-subject", "collabot.inbound", "NATS subject for inbound prompts")

	desktopNotify := flag.Bool("desktop-notifications", true, "enable OS toast/terminal-title notifications")

	agentBinary := flag.String("agent-binary", "claude", "agent CLI binary to invoke per dispatch")
	defaultModel := flag.String("default-model", "", "model to use when a role has no modelHint")
	modelAliases := flag.String("model-aliases", "", "comma-separated alias=model pairs resolving a role's modelHint")
	maxConcurrent := flag.Int("max-concurrent", 8, "maximum concurrently running dispatches")

	version := flag.String("version", "dev", "reported in /api/status")
	flag.Parse()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		fatalf("create data dir: %v", err)
	}

	lockPath := filepath.Join(*dataDir, "collabotd.lock")
	lock, err := instance.Acquire(lockPath, *socketAddr)
	if err != nil {
		fatalf("%v", err)
	}
	defer lock.Release()

	rolesFile, err := config.LoadRoles(*rolesPath)
	if err != nil {
		fatalf("load roles: %v", err)
	}
	projectsFile, err := config.LoadProjects(*projectsPath)
	if err != nil {
		fatalf("load projects: %v", err)
	}

	logger := log.New(os.Stderr, "collabotd ", log.LstdFlags)

	store := dispatchstore.New()

	ledgerPath := filepath.Join(*dataDir, "ledger.db")
	costLedger, err := ledger.Open(ledgerPath)
	if err != nil {
		fatalf("open ledger: %v", err)
	}
	defer costLedger.Close()

	agentPool := pool.New(*maxConcurrent)
	tracker := pool.NewTracker()

	registry := providers.NewRegistry(logger)
	agentPool.OnChange(func(agents []model.ActiveAgent) {
		registry.Broadcast(model.ChannelMessage{
			Type:    "pool_status",
			Payload: map[string]interface{}{"agents": agents},
		})
	})

	socketProv := socketprovider.New(socketprovider.Config{
		Addr:   *socketAddr,
		Path:   *socketPath,
		Logger: logger,
	})
	if err := registry.Register(socketProv); err != nil {
		fatalf("register socket provider: %v", err)
	}

	if *natsURL != "" {
		natsProv := natsprovider.New(natsprovider.Config{
			URL:             *natsURL,
			OutboundSubject: *natsOutbound,
			InboundSubject:  *natsInbound,
			Logger:          logger,
		})
		if err := registry.Register(natsProv); err != nil {
			fatalf("register nats provider: %v", err)
		}
	}

	if *desktopNotify {
		if err := registry.Register(desktopprovider.New("collabotd")); err != nil {
			fatalf("register desktop provider: %v", err)
		}
	}

	aliases := parseModelAliases(*modelAliases)

	runtime := dispatch.New(runner.New(), store, agentPool, tracker, registry, costLedger, aliases, *defaultModel, logger)
	runtime.AgentBinary = *agentBinary

	draftMgr := draft.NewManager(filepath.Join(*dataDir, "tasks"))
	if _, err := draftMgr.LoadActiveDraft(); err != nil {
		fatalf("load active draft: %v", err)
	}

	core := orchestrator.New(runtime, store, agentPool, tracker, draftMgr, rolesFile, projectsFile, *projectsPath, *dataDir)
	if err := core.Recover(context.Background()); err != nil {
		fatalf("recover draft session: %v", err)
	}

	mcpSrv := mcpserver.New()
	mcpHTTP := &http.Server{Addr: *mcpAddr, Handler: mcpSrv}
	go func() {
		if err := mcpHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("mcp server error: %v", err)
		}
	}()
	defer mcpHTTP.Shutdown(context.Background())

	mcpURL := fmt.Sprintf("http://localhost%s", *mcpAddr)
	fullTools := rpctools.BuildFullRegistry(core.BuildCallbacks())
	readOnlyTools := rpctools.BuildReadOnlyRegistry(core.BuildCallbacks())
	runtime.EnableTools(mcpSrv, mcpURL, fullTools, readOnlyTools)

	rpcSrv := rpcserver.New(core)
	socketProv.SetRequestHandler(socketprovider.RequestHandler(rpcSrv.HandleFrame))
	registry.BindInbound(core.HandleTask)

	statusSrv := httpapi.New(*httpAddr, *version, core)

	registry.StartAll()
	defer registry.StopAll()

	statusErr := statusSrv.Start()
	defer statusSrv.Stop()

	logger.Printf("collabotd listening: rpc=%s http=%s mcp=%s", *socketAddr, *httpAddr, *mcpAddr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-statusErr:
		if err != nil {
			logger.Printf("http status server error: %v", err)
		}
	case sig := <-shutdown:
		logger.Printf("shutting down (%s)", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := statusSrv.Stop(); err != nil {
		logger.Printf("http status shutdown error: %v", err)
	}
	if err := mcpHTTP.Shutdown(shutdownCtx); err != nil {
		logger.Printf("mcp server shutdown error: %v", err)
	}
	registry.StopAll()
}

// parseModelAliases parses "alias=model,alias2=model2" into a map.
// Malformed entries (no "=") are skipped rather than failing startup —
// a typo in one alias shouldn't prevent the daemon from starting with
// the rest intact.
func parseModelAliases(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
