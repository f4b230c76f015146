package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/recall/internal/memory"
)

const embedTimeout = 30 * time.Second

// Indexer populates the chunk cache from fact writes. Embedding is
// detached from the write path: EmbedAsync returns immediately and a
// provider or storage failure is logged, never surfaced to the fact save.
// Drain exists so tests and shutdown can await pending work.
type Indexer struct {
	provider Provider
	chunks   memory.ChunkStore
	logger   *slog.Logger

	wg        sync.WaitGroup
	completed atomic.Int64
	failed    atomic.Int64
}

// NewIndexer creates an Indexer. A nil provider disables embedding:
// EmbedAsync and Backfill become no-ops and the engine stays lexical-only.
func NewIndexer(provider Provider, chunks memory.ChunkStore, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		provider: provider,
		chunks:   chunks,
		logger:   logger,
	}
}

// Enabled reports whether an embedding provider is configured.
func (ix *Indexer) Enabled() bool {
	return ix != nil && ix.provider != nil
}

// EmbedAsync schedules embedding of the fact in the background.
func (ix *Indexer) EmbedAsync(fact memory.Fact) {
	if !ix.Enabled() {
		return
	}
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), embedTimeout)
		defer cancel()
		if err := ix.EmbedFact(ctx, fact); err != nil {
			ix.failed.Add(1)
			ix.logger.Warn("fact embedding failed", "fact_id", fact.ID, "error", err)
			return
		}
		ix.completed.Add(1)
	}()
}

// EmbedFact embeds the fact synchronously and replaces its chunk.
// The embedded text combines category, subject, and content so retrieval
// matches on all three.
func (ix *Indexer) EmbedFact(ctx context.Context, fact memory.Fact) error {
	if !ix.Enabled() {
		return nil
	}

	text := embedText(fact)
	vec, err := ix.provider.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding: provider: %w", err)
	}

	if err := ix.chunks.ReplaceChunk(ctx, fact.ID, text, EncodeVector(vec)); err != nil {
		return fmt.Errorf("embedding: store chunk: %w", err)
	}
	return nil
}

// Backfill embeds every fact lacking a chunk, sequentially and best-effort:
// a provider failure for one fact does not abort the batch. Returns the
// number of facts embedded.
func (ix *Indexer) Backfill(ctx context.Context) (int, error) {
	if !ix.Enabled() {
		return 0, nil
	}

	facts, err := ix.chunks.FactsWithoutChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("embedding: list unembedded facts: %w", err)
	}

	embedded := 0
	for i := range facts {
		if err := ctx.Err(); err != nil {
			return embedded, err
		}
		if err := ix.EmbedFact(ctx, facts[i]); err != nil {
			ix.failed.Add(1)
			ix.logger.Warn("backfill embedding failed", "fact_id", facts[i].ID, "error", err)
			continue
		}
		ix.completed.Add(1)
		embedded++
	}

	if embedded > 0 {
		ix.logger.Info("embedding backfill complete", "embedded", embedded, "total", len(facts))
	}
	return embedded, nil
}

// Drain blocks until all scheduled background embeds have finished.
func (ix *Indexer) Drain() {
	ix.wg.Wait()
}

// Completed returns the number of successful embeds since startup.
func (ix *Indexer) Completed() int64 { return ix.completed.Load() }

// Failed returns the number of failed embeds since startup.
func (ix *Indexer) Failed() int64 { return ix.failed.Load() }

// embedText renders the canonical embedded representation of a fact.
func embedText(fact memory.Fact) string {
	return fact.Category + " " + fact.Subject + ": " + fact.Content
}
