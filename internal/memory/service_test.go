package memory

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// factRecorder is an in-memory FactStore covering what Service touches.
type factRecorder struct {
	mu    sync.Mutex
	facts map[int64]Fact
	next  int64
}

var _ FactStore = (*factRecorder)(nil)

func newFactRecorder() *factRecorder {
	return &factRecorder{facts: make(map[int64]Fact), next: 1}
}

func (r *factRecorder) SaveFact(_ context.Context, category, subject, content string) (Fact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, f := range r.facts {
		if f.Category == category && f.Subject == subject {
			f.Content = content
			f.UpdatedAt = time.Now()
			r.facts[id] = f
			return f, nil
		}
	}
	f := Fact{ID: r.next, Category: category, Subject: subject, Content: content, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	r.next++
	r.facts[f.ID] = f
	return f, nil
}

func (r *factRecorder) Fact(_ context.Context, id int64) (Fact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.facts[id]
	if !ok {
		return Fact{}, ErrFactNotFound
	}
	return f, nil
}

func (r *factRecorder) FactsByID(_ context.Context, ids []int64) ([]Fact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Fact
	for _, id := range ids {
		if f, ok := r.facts[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *factRecorder) AllFacts(_ context.Context) ([]Fact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Fact
	for _, f := range r.facts {
		out = append(out, f)
	}
	return out, nil
}

func (r *factRecorder) DeleteFact(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.facts[id]; !ok {
		return ErrFactNotFound
	}
	delete(r.facts, id)
	return nil
}

func (r *factRecorder) DeleteFactBySubject(_ context.Context, category, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, f := range r.facts {
		if f.Category == category && f.Subject == subject {
			delete(r.facts, id)
			return nil
		}
	}
	return ErrFactNotFound
}

func (r *factRecorder) SearchFacts(_ context.Context, query, category string) ([]Fact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(query)
	var out []Fact
	for _, f := range r.facts {
		if category != "" && f.Category != category {
			continue
		}
		if strings.Contains(strings.ToLower(f.Content), q) ||
			strings.Contains(strings.ToLower(f.Subject), q) ||
			strings.Contains(strings.ToLower(f.Category), q) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *factRecorder) SearchLexical(context.Context, string, int) ([]LexicalMatch, error) {
	return nil, nil
}

func (r *factRecorder) RebuildIndex(context.Context) error { return nil }

func (r *factRecorder) FactCount(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.facts), nil
}

// stubIndexer records which facts were scheduled for embedding.
type stubIndexer struct {
	mu      sync.Mutex
	enabled bool
	facts   []Fact
}

var _ FactIndexer = (*stubIndexer)(nil)

func (s *stubIndexer) EmbedAsync(f Fact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts = append(s.facts, f)
}

func (s *stubIndexer) Enabled() bool { return s.enabled }

func (s *stubIndexer) scheduled() []Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Fact(nil), s.facts...)
}

func TestServiceSaveFactSchedulesEmbedding(t *testing.T) {
	store := newFactRecorder()
	idx := &stubIndexer{enabled: true}
	svc := NewService(store, idx, nil)

	fact, err := svc.SaveFact(context.Background(), "pets", "dog", "Has a golden retriever")
	if err != nil {
		t.Fatalf("SaveFact: %v", err)
	}
	got := idx.scheduled()
	if len(got) != 1 || got[0].ID != fact.ID {
		t.Fatalf("scheduled = %+v, want one entry for fact %d", got, fact.ID)
	}
}

func TestServiceSaveFactLexicalOnly(t *testing.T) {
	store := newFactRecorder()
	idx := &stubIndexer{enabled: false}
	svc := NewService(store, idx, nil)

	if _, err := svc.SaveFact(context.Background(), "pets", "dog", "Has a golden retriever"); err != nil {
		t.Fatalf("SaveFact: %v", err)
	}
	if got := idx.scheduled(); len(got) != 0 {
		t.Fatalf("scheduled = %+v, want none without a provider", got)
	}
}

func TestServiceSaveFactNilIndexer(t *testing.T) {
	svc := NewService(newFactRecorder(), nil, nil)
	if _, err := svc.SaveFact(context.Background(), "work", "employer", "Acme"); err != nil {
		t.Fatalf("SaveFact: %v", err)
	}
}

func TestServiceFactsForContext(t *testing.T) {
	store := newFactRecorder()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	seed := []struct{ category, subject, content string }{
		{"pets", "dog", "Has a golden retriever"},
		{"identity", "name", "Alex"},
		{"pets", "cat", "Allergic"},
		{"work", "employer", "Acme"},
	}
	for _, f := range seed {
		if _, err := svc.SaveFact(ctx, f.category, f.subject, f.content); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.FactsForContext(ctx)
	if err != nil {
		t.Fatalf("FactsForContext: %v", err)
	}
	want := "Known facts about the user:\n" +
		"\nIdentity:\n- name: Alex\n" +
		"\nPets:\n- cat: Allergic\n- dog: Has a golden retriever\n" +
		"\nWork:\n- employer: Acme"
	if got != want {
		t.Errorf("FactsForContext =\n%s\nwant\n%s", got, want)
	}

	again, err := svc.FactsForContext(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again != got {
		t.Error("FactsForContext is not deterministic")
	}
}

func TestServiceFactsForContextEmpty(t *testing.T) {
	svc := NewService(newFactRecorder(), nil, nil)
	got, err := svc.FactsForContext(context.Background())
	if err != nil {
		t.Fatalf("FactsForContext: %v", err)
	}
	if got != "" {
		t.Errorf("FactsForContext = %q, want empty", got)
	}
}
