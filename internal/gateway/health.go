package gateway

import (
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Facts  int    `json:"facts"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 while storage answers, 503 once it stops doing so.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.factStore != nil {
			n, err := g.factStore.FactCount(r.Context())
			if err != nil {
				resp.Status = "degraded"
			}
			resp.Facts = n
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
