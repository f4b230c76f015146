// Package gateway provides the HTTP surface of the memory engine:
// health, status, Prometheus metrics, and the fact, search, context,
// graph, job, and conversation APIs. It binds to loopback by default and
// follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	ctxengine "github.com/flemzord/recall/internal/context"
	"github.com/flemzord/recall/internal/core"
	"github.com/flemzord/recall/internal/graph"
	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/internal/search"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Gateway is the HTTP gateway module. It is a leaf module: nothing
// imports it; every dependency is resolved through the service registry.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	startedAt time.Time

	// Resolved lazily at Start() via service registry. Any of these may
	// be nil; the affected endpoints degrade to 503.
	facts     *memory.Service
	assembler *ctxengine.Assembler
	engine    *search.Engine
	graphs    *graph.Builder

	conversations memory.ConversationStore
	factStore     memory.FactStore
	chunks        memory.ChunkStore
	summaries     memory.SummaryStore
	jobs          memory.JobStore
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()

	ctx.RegisterService("gateway.metrics", g.metrics)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the
// service registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	resolve(g.appCtx, "memory.service", &g.facts)
	resolve(g.appCtx, "context.assembler", &g.assembler)
	resolve(g.appCtx, "search.engine", &g.engine)
	resolve(g.appCtx, "graph.builder", &g.graphs)
	resolve(g.appCtx, "storage.conversations", &g.conversations)
	resolve(g.appCtx, "storage.facts", &g.factStore)
	resolve(g.appCtx, "storage.chunks", &g.chunks)
	resolve(g.appCtx, "storage.summaries", &g.summaries)
	resolve(g.appCtx, "storage.jobs", &g.jobs)

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// resolve assigns the named service into dst when present and of the
// right type. Missing services leave dst nil.
func resolve[T any](ctx *core.AppContext, name string, dst *T) {
	svc, ok := ctx.Service(name)
	if !ok {
		return
	}
	if v, ok := svc.(T); ok {
		*dst = v
	}
}
