package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/flemzord/recall/internal/memory"
	"github.com/go-chi/chi/v5"
)

// factJSON is the serialized fact shape.
type factJSON struct {
	ID        int64  `json:"id"`
	Category  string `json:"category"`
	Subject   string `json:"subject"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toFactJSON(f memory.Fact) factJSON {
	return factJSON{
		ID:        f.ID,
		Category:  f.Category,
		Subject:   f.Subject,
		Content:   f.Content,
		CreatedAt: f.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: f.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toFactList(facts []memory.Fact) []factJSON {
	out := make([]factJSON, 0, len(facts))
	for _, f := range facts {
		out = append(out, toFactJSON(f))
	}
	return out
}

// handleListFacts returns every stored fact for GET /api/facts.
func (g *Gateway) handleListFacts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.facts == nil {
			writeError(w, http.StatusServiceUnavailable, "memory service unavailable")
			return
		}
		facts, err := g.facts.AllFacts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toFactList(facts))
	}
}

// saveFactRequest is the POST /api/facts payload.
type saveFactRequest struct {
	Category string `json:"category"`
	Subject  string `json:"subject"`
	Content  string `json:"content"`
}

// handleSaveFact upserts a fact for POST /api/facts.
func (g *Gateway) handleSaveFact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.facts == nil {
			writeError(w, http.StatusServiceUnavailable, "memory service unavailable")
			return
		}

		var req saveFactRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Category == "" || req.Subject == "" || req.Content == "" {
			writeError(w, http.StatusBadRequest, "category, subject, and content are required")
			return
		}

		fact, err := g.facts.SaveFact(r.Context(), req.Category, req.Subject, req.Content)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		g.metrics.RecordFactSave()
		writeJSON(w, http.StatusOK, toFactJSON(fact))
	}
}

// handleDeleteFact removes a fact for DELETE /api/facts/{id}.
func (g *Gateway) handleDeleteFact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.facts == nil {
			writeError(w, http.StatusServiceUnavailable, "memory service unavailable")
			return
		}

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid fact id")
			return
		}

		switch err := g.facts.DeleteFact(r.Context(), id); {
		case errors.Is(err, memory.ErrFactNotFound):
			writeError(w, http.StatusNotFound, "fact not found")
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// handleSearchFacts serves the substring search for GET /api/facts/search.
func (g *Gateway) handleSearchFacts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.facts == nil {
			writeError(w, http.StatusServiceUnavailable, "memory service unavailable")
			return
		}

		query := r.URL.Query().Get("q")
		if query == "" {
			writeError(w, http.StatusBadRequest, "q parameter is required")
			return
		}

		facts, err := g.facts.SearchFacts(r.Context(), query, r.URL.Query().Get("category"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toFactList(facts))
	}
}

// searchResultJSON pairs a fact with its combined relevance score.
type searchResultJSON struct {
	Fact  factJSON `json:"fact"`
	Score float64  `json:"score"`
}

// handleHybridSearch serves the ranked retrieval for GET /api/search.
func (g *Gateway) handleHybridSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.engine == nil {
			writeError(w, http.StatusServiceUnavailable, "search engine unavailable")
			return
		}

		query := r.URL.Query().Get("q")
		if query == "" {
			writeError(w, http.StatusBadRequest, "q parameter is required")
			return
		}

		results, err := g.engine.Search(r.Context(), query)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		g.metrics.RecordSearch()

		out := make([]searchResultJSON, 0, len(results))
		for _, res := range results {
			out = append(out, searchResultJSON{Fact: toFactJSON(res.Fact), Score: res.Score})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleFactContext renders the fact prompt block for GET /api/context/facts.
func (g *Gateway) handleFactContext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.facts == nil {
			writeError(w, http.StatusServiceUnavailable, "memory service unavailable")
			return
		}

		text, err := g.facts.FactsForContext(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"context": text})
	}
}

// handleGraph serves the derived relationship graph for GET /api/graph.
func (g *Gateway) handleGraph() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.graphs == nil {
			writeError(w, http.StatusServiceUnavailable, "graph builder unavailable")
			return
		}

		built, err := g.graphs.Build(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, built)
	}
}
