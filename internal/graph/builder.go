// Package graph derives a relationship graph from stored facts: one node
// per fact and typed edges from shared category, embedding similarity,
// and keyword overlap. The graph is computed on demand, never persisted.
package graph

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/flemzord/recall/internal/embedding"
	"github.com/flemzord/recall/internal/memory"
)

const (
	// categoryFanout links each fact to at most the next N facts in its
	// category, keeping the edge count linear in the category size.
	categoryFanout = 3

	// Semantic edge bounds: candidate chunks, total pairwise
	// comparisons, and the similarity floor.
	semanticChunkCap   = 200
	semanticPairCap    = 10000
	semanticSimilarity = 0.5

	// Keyword edge bounds.
	keywordFactCap   = 300
	keywordPairCap   = 10000
	keywordMinLen    = 4
	keywordMinShared = 2
)

// categoryGroups maps known categories to stable node group indexes.
// Unknown categories fall into the "other" bucket.
var categoryGroups = map[string]int{
	"identity":      1,
	"preferences":   2,
	"pets":          3,
	"work":          4,
	"relationships": 5,
	"health":        6,
	"hobbies":       7,
	"events":        8,
}

const otherGroup = 0

// keywordStoplist holds common words excluded from keyword extraction.
var keywordStoplist = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "have": {}, "from": {},
	"they": {}, "will": {}, "would": {}, "there": {}, "their": {},
	"what": {}, "about": {}, "which": {}, "when": {}, "your": {},
	"like": {}, "just": {}, "know": {}, "time": {}, "them": {},
	"some": {}, "been": {}, "than": {}, "then": {}, "were": {},
	"does": {}, "also": {}, "more": {}, "very": {}, "into": {},
	"because": {}, "could": {}, "should": {}, "really": {},
}

// Builder assembles the relationship graph.
type Builder struct {
	facts  memory.FactStore
	chunks memory.ChunkStore
	logger *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(facts memory.FactStore, chunks memory.ChunkStore, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{facts: facts, chunks: chunks, logger: logger}
}

// Build returns the derived graph for all stored facts. Missing or
// unreadable embeddings only suppress semantic edges; they never fail
// the build.
func (b *Builder) Build(ctx context.Context) (*memory.Graph, error) {
	facts, err := b.facts.AllFacts(ctx)
	if err != nil {
		return nil, err
	}

	g := &memory.Graph{
		Nodes: make([]memory.GraphNode, 0, len(facts)),
		Links: []memory.GraphLink{},
	}
	for _, f := range facts {
		group, ok := categoryGroups[f.Category]
		if !ok {
			group = otherGroup
		}
		g.Nodes = append(g.Nodes, memory.GraphNode{
			ID:       f.ID,
			Label:    f.Subject,
			Category: f.Category,
			Group:    group,
		})
	}

	seen := make(map[[2]int64]map[memory.LinkType]struct{})
	add := func(a, c int64, typ memory.LinkType, strength float64) {
		if a == c {
			return
		}
		if a > c {
			a, c = c, a
		}
		key := [2]int64{a, c}
		if seen[key] == nil {
			seen[key] = make(map[memory.LinkType]struct{})
		}
		if _, dup := seen[key][typ]; dup {
			return
		}
		seen[key][typ] = struct{}{}
		g.Links = append(g.Links, memory.GraphLink{Source: a, Target: c, Type: typ, Strength: strength})
	}

	b.categoryLinks(facts, add)
	b.semanticLinks(ctx, add)
	b.keywordLinks(facts, add)

	return g, nil
}

// categoryLinks connects each fact to up to the next categoryFanout
// facts in its category. facts arrive ordered by category then subject,
// so a category is one contiguous run.
func (b *Builder) categoryLinks(facts []memory.Fact, add func(a, c int64, typ memory.LinkType, strength float64)) {
	byCategory := make(map[string][]memory.Fact)
	for _, f := range facts {
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}
	for _, group := range byCategory {
		for i := range group {
			for j := i + 1; j <= i+categoryFanout && j < len(group); j++ {
				add(group[i].ID, group[j].ID, memory.LinkCategory, 1)
			}
		}
	}
}

// semanticLinks compares recent chunk embeddings pairwise, bounded by
// semanticChunkCap candidates and semanticPairCap comparisons.
func (b *Builder) semanticLinks(ctx context.Context, add func(a, c int64, typ memory.LinkType, strength float64)) {
	chunks, err := b.chunks.RecentChunks(ctx, semanticChunkCap)
	if err != nil {
		b.logger.Warn("semantic edges skipped", "error", err)
		return
	}

	type candidate struct {
		factID int64
		vec    []float32
	}
	cands := make([]candidate, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		vec, err := embedding.DecodeVector(c.Embedding)
		if err != nil {
			b.logger.Warn("skipping malformed embedding", "chunk", c.ID, "error", err)
			continue
		}
		cands = append(cands, candidate{factID: c.FactID, vec: vec})
	}

	pairs := 0
	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			if pairs >= semanticPairCap {
				return
			}
			pairs++
			if sim := embedding.Cosine(cands[i].vec, cands[j].vec); sim >= semanticSimilarity {
				add(cands[i].factID, cands[j].factID, memory.LinkSemantic, sim)
			}
		}
	}
}

// keywordLinks connects facts sharing at least keywordMinShared
// extracted keywords, over at most keywordFactCap facts.
func (b *Builder) keywordLinks(facts []memory.Fact, add func(a, c int64, typ memory.LinkType, strength float64)) {
	if len(facts) > keywordFactCap {
		facts = facts[:keywordFactCap]
	}

	type keyed struct {
		factID int64
		words  map[string]struct{}
	}
	entries := make([]keyed, 0, len(facts))
	for _, f := range facts {
		words := extractKeywords(f.Subject + " " + f.Content)
		if len(words) == 0 {
			continue
		}
		entries = append(entries, keyed{factID: f.ID, words: words})
	}

	pairs := 0
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if pairs >= keywordPairCap {
				return
			}
			pairs++
			shared := 0
			for w := range entries[i].words {
				if _, ok := entries[j].words[w]; ok {
					shared++
				}
			}
			if shared >= keywordMinShared {
				strength := float64(shared) / 5
				if strength > 1 {
					strength = 1
				}
				add(entries[i].factID, entries[j].factID, memory.LinkKeyword, strength)
			}
		}
	}
}

// extractKeywords returns the lowercase words of length keywordMinLen or
// more, excluding the stoplist.
func extractKeywords(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{})
	for _, w := range words {
		if len(w) < keywordMinLen {
			continue
		}
		if _, stop := keywordStoplist[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
