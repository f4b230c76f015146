package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FactIndexer re-embeds facts after mutation. Implementations run in the
// background; failures are logged by the indexer and never surfaced here.
type FactIndexer interface {
	// EmbedAsync schedules an embedding refresh for the fact.
	EmbedAsync(fact Fact)

	// Enabled reports whether an embedding provider is configured.
	Enabled() bool
}

// Service is the fact-facing facade: it couples fact mutations to the
// embedding indexer and renders the deterministic fact context block.
type Service struct {
	facts   FactStore
	indexer FactIndexer // nil in lexical-only mode
	logger  *slog.Logger
}

// NewService creates a Service. A nil indexer disables re-embedding.
func NewService(facts FactStore, indexer FactIndexer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{facts: facts, indexer: indexer, logger: logger}
}

// SaveFact upserts the fact and schedules a background re-embed. The
// write succeeds regardless of embedding availability.
func (s *Service) SaveFact(ctx context.Context, category, subject, content string) (Fact, error) {
	fact, err := s.facts.SaveFact(ctx, category, subject, content)
	if err != nil {
		return Fact{}, err
	}
	if s.indexer != nil && s.indexer.Enabled() {
		s.indexer.EmbedAsync(fact)
	}
	return fact, nil
}

// DeleteFact removes a fact by id. Returns ErrFactNotFound if absent.
func (s *Service) DeleteFact(ctx context.Context, id int64) error {
	return s.facts.DeleteFact(ctx, id)
}

// DeleteFactBySubject removes the fact for (category, subject).
func (s *Service) DeleteFactBySubject(ctx context.Context, category, subject string) error {
	return s.facts.DeleteFactBySubject(ctx, category, subject)
}

// Fact returns a single fact by id.
func (s *Service) Fact(ctx context.Context, id int64) (Fact, error) {
	return s.facts.Fact(ctx, id)
}

// AllFacts returns every fact ordered by category then subject.
func (s *Service) AllFacts(ctx context.Context) ([]Fact, error) {
	return s.facts.AllFacts(ctx)
}

// SearchFacts is the case-insensitive substring search, optionally
// scoped to one category.
func (s *Service) SearchFacts(ctx context.Context, query, category string) ([]Fact, error) {
	return s.facts.SearchFacts(ctx, query, category)
}

// FactsForContext renders all stored facts as a deterministic text
// block for prompt injection: categories in sorted order, one header per
// category, subjects sorted within it. Identical state always yields
// identical output. Returns "" when no facts exist.
func (s *Service) FactsForContext(ctx context.Context) (string, error) {
	facts, err := s.facts.AllFacts(ctx)
	if err != nil {
		return "", fmt.Errorf("memory: load facts for context: %w", err)
	}
	if len(facts) == 0 {
		return "", nil
	}

	grouped := make(map[string][]Fact)
	for _, f := range facts {
		grouped[f.Category] = append(grouped[f.Category], f)
	}
	categories := make([]string, 0, len(grouped))
	for c := range grouped {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("Known facts about the user:\n")
	for _, c := range categories {
		label := c
		if label != "" {
			label = strings.ToUpper(label[:1]) + label[1:]
		}
		fmt.Fprintf(&b, "\n%s:\n", label)
		group := grouped[c]
		sort.Slice(group, func(i, j int) bool { return group[i].Subject < group[j].Subject })
		for _, f := range group {
			fmt.Fprintf(&b, "- %s: %s\n", f.Subject, f.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
