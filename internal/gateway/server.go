package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(g.metrics.middleware)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", g.metrics.Handler())

	// API endpoints require auth. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Get("/facts", g.handleListFacts())
				r.Post("/facts", g.handleSaveFact())
				r.Delete("/facts/{id}", g.handleDeleteFact())
				r.Get("/facts/search", g.handleSearchFacts())
				r.Get("/search", g.handleHybridSearch())
				r.Get("/graph", g.handleGraph())
				r.Get("/context/facts", g.handleFactContext())
				r.Get("/context/conversation", g.handleConversationContext())
				r.Get("/messages", g.handleListMessages())
				r.Post("/messages", g.handleSaveMessage())
				r.Delete("/conversation", g.handleClearConversation())
				r.Get("/stats", g.handleStats())
				r.Get("/jobs", g.handleListJobs())
				r.Post("/jobs", g.handleCreateJob())
				r.Patch("/jobs/{id}", g.handleSetJobEnabled())
				r.Delete("/jobs/{id}", g.handleDeleteJob())
			})
		})
	}

	return r
}

// writeJSON renders v with the standard JSON headers.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError renders an error payload.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
