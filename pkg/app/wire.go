package app

import (
	"context"
	"fmt"
	"log/slog"

	ctxengine "github.com/flemzord/recall/internal/context"
	"github.com/flemzord/recall/internal/core"
	"github.com/flemzord/recall/internal/embedding"
	"github.com/flemzord/recall/internal/graph"
	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/internal/search"
)

// indexerModule wraps the embedding Indexer so in-flight embeddings are
// drained during shutdown, before storage closes.
type indexerModule struct {
	indexer *embedding.Indexer
}

func (m *indexerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "embedding.indexer"}
}

func (m *indexerModule) Stop(_ context.Context) error {
	m.indexer.Drain()
	return nil
}

// wireEngine composes the memory engine from the storage services and
// the optional embedding provider, and registers the results for the
// gateway and scheduler to discover. Must be called after LoadModules
// and before Start.
func wireEngine(
	application *core.App,
	appCtx *core.AppContext,
	logger *slog.Logger,
	summarizer ctxengine.Summarizer,
) error {
	conversations, err := service[memory.ConversationStore](appCtx, "storage.conversations")
	if err != nil {
		return err
	}
	facts, err := service[memory.FactStore](appCtx, "storage.facts")
	if err != nil {
		return err
	}
	chunks, err := service[memory.ChunkStore](appCtx, "storage.chunks")
	if err != nil {
		return err
	}
	summaries, err := service[memory.SummaryStore](appCtx, "storage.summaries")
	if err != nil {
		return err
	}

	// Optional: absent provider means lexical-only mode.
	var provider embedding.Provider
	if svc, ok := appCtx.Service("embedding.provider"); ok {
		provider, _ = svc.(embedding.Provider)
	}

	var indexer *embedding.Indexer
	if provider != nil {
		indexer = embedding.NewIndexer(provider, chunks, logger)
		appCtx.RegisterService("embedding.indexer", indexer)
		application.AppendModule("embedding.indexer", &indexerModule{indexer: indexer})
	}

	estimator := ctxengine.NewCharEstimator(0)
	pipeline := ctxengine.NewPipeline(conversations, summaries, summarizer, estimator, logger)
	assembler := ctxengine.NewAssembler(conversations, pipeline, estimator, logger)

	var factIndexer memory.FactIndexer
	if indexer != nil {
		factIndexer = indexer
	}
	memService := memory.NewService(facts, factIndexer, logger)

	engine := search.NewEngine(facts, chunks, provider, logger)
	builder := graph.NewBuilder(facts, chunks, logger)

	appCtx.RegisterService("context.assembler", assembler)
	appCtx.RegisterService("memory.service", memService)
	appCtx.RegisterService("search.engine", engine)
	appCtx.RegisterService("graph.builder", builder)

	return nil
}

// service resolves a required typed service from the registry.
func service[T any](appCtx *core.AppContext, name string) (T, error) {
	var zero T
	svc, ok := appCtx.Service(name)
	if !ok {
		return zero, fmt.Errorf("wiring: required service %q not registered", name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("wiring: service %q has type %T", name, svc)
	}
	return typed, nil
}
