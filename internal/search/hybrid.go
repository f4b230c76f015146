// Package search implements hybrid fact retrieval: a vector signal over
// the recent embedding chunks combined with a normalized lexical signal
// from the full-text index.
package search

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/flemzord/recall/internal/embedding"
	"github.com/flemzord/recall/internal/memory"
)

const (
	// Signal weights and acceptance threshold with an embedding provider.
	vectorWeight    = 0.7
	lexicalWeight   = 0.3
	hybridThreshold = 0.35

	// Lexical-only mode. The threshold is lower because raw index ranks
	// are harsher on average than cosine similarities.
	lexicalOnlyWeight    = 1.0
	lexicalOnlyThreshold = 0.15

	// chunkWindow bounds the vector scan to the most recent chunks. A
	// recency-biased approximation traded for interactive latency.
	chunkWindow = 500

	// lexicalLimit bounds the raw hits requested from the index.
	lexicalLimit = 50

	// topK is the maximum number of results returned.
	topK = 6
)

// Engine combines the vector and lexical signals into one ranked result
// set. A nil provider selects lexical-only mode.
type Engine struct {
	facts    memory.FactStore
	chunks   memory.ChunkStore
	provider embedding.Provider
	logger   *slog.Logger
}

// NewEngine creates an Engine. provider may be nil.
func NewEngine(facts memory.FactStore, chunks memory.ChunkStore, provider embedding.Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{facts: facts, chunks: chunks, provider: provider, logger: logger}
}

// Search returns up to topK facts scored at or above the mode's
// threshold, sorted by descending combined score. A failing sub-signal
// contributes zero instead of failing the call.
func (e *Engine) Search(ctx context.Context, query string) ([]memory.SearchResult, error) {
	scores := make(map[int64]float64)

	lexWeight := lexicalOnlyWeight
	threshold := lexicalOnlyThreshold
	if e.provider != nil {
		lexWeight = lexicalWeight
		threshold = hybridThreshold
		e.vectorScores(ctx, query, scores)
	}
	e.lexicalScores(ctx, query, lexWeight, scores)

	ids := make([]int64, 0, len(scores))
	for id, score := range scores {
		if score >= threshold {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []memory.SearchResult{}, nil
	}

	facts, err := e.facts.FactsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]memory.SearchResult, 0, len(facts))
	for _, f := range facts {
		results = append(results, memory.SearchResult{Fact: f, Score: scores[f.ID]})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Fact.ID < results[j].Fact.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// vectorScores adds the cosine-similarity contribution for each fact
// whose chunk falls inside the recency window. Dimension mismatches are
// skipped. Any failure leaves scores untouched.
func (e *Engine) vectorScores(ctx context.Context, query string, scores map[int64]float64) {
	qvec, err := e.provider.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("vector signal unavailable", "error", err)
		return
	}
	if len(qvec) == 0 {
		return
	}

	chunks, err := e.chunks.RecentChunks(ctx, chunkWindow)
	if err != nil {
		e.logger.Warn("chunk scan failed", "error", err)
		return
	}

	for _, c := range chunks {
		vec, err := embedding.DecodeVector(c.Embedding)
		if err != nil {
			e.logger.Warn("skipping malformed embedding", "chunk", c.ID, "error", err)
			continue
		}
		if len(vec) != len(qvec) {
			continue
		}
		scores[c.FactID] += vectorWeight * embedding.Cosine(qvec, vec)
	}
}

// lexicalScores adds the normalized full-text contribution. Raw ranks
// are scaled into [0, 1] by the largest magnitude in the batch. Any
// failure leaves scores untouched.
func (e *Engine) lexicalScores(ctx context.Context, query string, weight float64, scores map[int64]float64) {
	matches, err := e.facts.SearchLexical(ctx, query, lexicalLimit)
	if err != nil {
		e.logger.Warn("lexical signal unavailable", "error", err)
		return
	}
	if len(matches) == 0 {
		return
	}

	maxRank := 0.0
	for _, m := range matches {
		if r := math.Abs(m.Rank); r > maxRank {
			maxRank = r
		}
	}
	if maxRank == 0 {
		// Every rank is zero; treat each hit as fully relevant.
		for _, m := range matches {
			scores[m.FactID] += weight
		}
		return
	}

	for _, m := range matches {
		scores[m.FactID] += weight * (math.Abs(m.Rank) / maxRank)
	}
}
