package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/flemzord/recall/internal/embedding"
	"github.com/flemzord/recall/internal/memory"
)

// lexStore is a FactStore fake feeding canned lexical matches.
type lexStore struct {
	matches []memory.LexicalMatch
	err     error
}

var _ memory.FactStore = (*lexStore)(nil)

func (s *lexStore) SearchLexical(context.Context, string, int) ([]memory.LexicalMatch, error) {
	return s.matches, s.err
}

func (s *lexStore) FactsByID(_ context.Context, ids []int64) ([]memory.Fact, error) {
	facts := make([]memory.Fact, 0, len(ids))
	for _, id := range ids {
		facts = append(facts, memory.Fact{ID: id, Category: "test", Subject: fmt.Sprintf("s%d", id)})
	}
	return facts, nil
}

func (s *lexStore) SaveFact(context.Context, string, string, string) (memory.Fact, error) {
	return memory.Fact{}, nil
}
func (s *lexStore) Fact(context.Context, int64) (memory.Fact, error) { return memory.Fact{}, nil }
func (s *lexStore) AllFacts(context.Context) ([]memory.Fact, error)  { return nil, nil }
func (s *lexStore) DeleteFact(context.Context, int64) error          { return nil }
func (s *lexStore) DeleteFactBySubject(context.Context, string, string) error {
	return nil
}
func (s *lexStore) SearchFacts(context.Context, string, string) ([]memory.Fact, error) {
	return nil, nil
}
func (s *lexStore) RebuildIndex(context.Context) error    { return nil }
func (s *lexStore) FactCount(context.Context) (int, error) { return 0, nil }

// chunkSource is a ChunkStore fake feeding canned chunks.
type chunkSource struct {
	chunks []memory.Chunk
	err    error
}

var _ memory.ChunkStore = (*chunkSource)(nil)

func (s *chunkSource) RecentChunks(context.Context, int) ([]memory.Chunk, error) {
	return s.chunks, s.err
}
func (s *chunkSource) ReplaceChunk(context.Context, int64, string, []byte) error { return nil }
func (s *chunkSource) FactsWithoutChunks(context.Context) ([]memory.Fact, error) {
	return nil, nil
}
func (s *chunkSource) ChunkCount(context.Context) (int, error) { return 0, nil }

func TestSearchLexicalOnly(t *testing.T) {
	facts := &lexStore{matches: []memory.LexicalMatch{
		{FactID: 1, Rank: -4},
		{FactID: 2, Rank: -2},
		{FactID: 3, Rank: -1},
	}}
	eng := NewEngine(facts, &chunkSource{}, nil, nil)

	results, err := eng.Search(context.Background(), "retriever")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	// Normalized by the largest magnitude: 1.0, 0.5, 0.25.
	wantScores := []float64{1.0, 0.5, 0.25}
	wantIDs := []int64{1, 2, 3}
	for i, r := range results {
		if r.Fact.ID != wantIDs[i] || r.Score != wantScores[i] {
			t.Errorf("results[%d] = {id %d, score %v}, want {id %d, score %v}",
				i, r.Fact.ID, r.Score, wantIDs[i], wantScores[i])
		}
	}
}

func TestSearchLexicalOnlyThreshold(t *testing.T) {
	// The weakest match normalizes to 0.1, below the lexical-only floor.
	facts := &lexStore{matches: []memory.LexicalMatch{
		{FactID: 1, Rank: -10},
		{FactID: 2, Rank: -1},
	}}
	eng := NewEngine(facts, &chunkSource{}, nil, nil)

	results, err := eng.Search(context.Background(), "coffee")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Fact.ID != 1 {
		t.Fatalf("results = %+v, want only fact 1", results)
	}
	if results[0].Score < lexicalOnlyThreshold {
		t.Errorf("best match score %v below floor", results[0].Score)
	}
}

func TestSearchHybridCombinesSignals(t *testing.T) {
	qvec := []float32{1, 0, 0}
	provider := embedding.ProviderFunc(func(context.Context, string) ([]float32, error) {
		return qvec, nil
	})
	chunks := &chunkSource{chunks: []memory.Chunk{
		{ID: 1, FactID: 1, Embedding: embedding.EncodeVector([]float32{1, 0, 0})},
		{ID: 2, FactID: 2, Embedding: embedding.EncodeVector([]float32{0, 1, 0})},
	}}
	facts := &lexStore{matches: []memory.LexicalMatch{
		{FactID: 1, Rank: -3},
	}}
	eng := NewEngine(facts, chunks, provider, nil)

	results, err := eng.Search(context.Background(), "dog")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Fact 1: 0.7*1.0 vector + 0.3*1.0 lexical = 1.0.
	// Fact 2: orthogonal vector only, 0.0, below 0.35.
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1: %+v", len(results), results)
	}
	if results[0].Fact.ID != 1 || results[0].Score < 0.99 {
		t.Errorf("results[0] = %+v, want fact 1 with score 1.0", results[0])
	}
}

func TestSearchSkipsDimensionMismatch(t *testing.T) {
	provider := embedding.ProviderFunc(func(context.Context, string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	})
	chunks := &chunkSource{chunks: []memory.Chunk{
		{ID: 1, FactID: 1, Embedding: embedding.EncodeVector([]float32{1, 0})},
	}}
	eng := NewEngine(&lexStore{}, chunks, provider, nil)

	results, err := eng.Search(context.Background(), "dog")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %+v, want none for mismatched dimensions", results)
	}
}

func TestSearchProviderFailureDegrades(t *testing.T) {
	provider := embedding.ProviderFunc(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("provider down")
	})
	facts := &lexStore{matches: []memory.LexicalMatch{
		{FactID: 1, Rank: -2},
	}}
	eng := NewEngine(facts, &chunkSource{}, provider, nil)

	// The lexical contribution alone is 0.3, under the hybrid threshold,
	// so the call succeeds with no results rather than erroring.
	results, err := eng.Search(context.Background(), "dog")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %+v, want none", results)
	}
}

func TestSearchLexicalFailureDegrades(t *testing.T) {
	provider := embedding.ProviderFunc(func(context.Context, string) ([]float32, error) {
		return []float32{1, 0}, nil
	})
	chunks := &chunkSource{chunks: []memory.Chunk{
		{ID: 1, FactID: 7, Embedding: embedding.EncodeVector([]float32{1, 0})},
	}}
	facts := &lexStore{err: errors.New("index corrupt")}
	eng := NewEngine(facts, chunks, provider, nil)

	results, err := eng.Search(context.Background(), "dog")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Fact.ID != 7 {
		t.Fatalf("results = %+v, want vector-only hit for fact 7", results)
	}
}

func TestSearchTruncatesToTopK(t *testing.T) {
	var matches []memory.LexicalMatch
	for i := 1; i <= 10; i++ {
		matches = append(matches, memory.LexicalMatch{FactID: int64(i), Rank: -float64(11 - i)})
	}
	eng := NewEngine(&lexStore{matches: matches}, &chunkSource{}, nil, nil)

	results, err := eng.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != topK {
		t.Fatalf("len(results) = %d, want %d", len(results), topK)
	}
	if results[0].Fact.ID != 1 {
		t.Errorf("results[0].Fact.ID = %d, want 1", results[0].Fact.ID)
	}
}

func TestSearchNoMatches(t *testing.T) {
	eng := NewEngine(&lexStore{}, &chunkSource{}, nil, nil)
	results, err := eng.Search(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %+v, want empty", results)
	}
}
