package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/recall/internal/memory"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime float64      `json:"uptime_seconds"`
	Stats  memory.Stats `json:"stats"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := g.collectStats(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, StatusResponse{
			Uptime: time.Since(g.startedAt).Truncate(time.Second).Seconds(),
			Stats:  stats,
		})
	}
}

// handleStats returns the bare counters for GET /api/stats.
func (g *Gateway) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := g.collectStats(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// collectStats reads every store's count. Stores that are not wired
// report zero.
func (g *Gateway) collectStats(r *http.Request) (memory.Stats, error) {
	var stats memory.Stats
	ctx := r.Context()

	var err error
	if g.conversations != nil {
		if stats.Messages, err = g.conversations.MessageCount(ctx); err != nil {
			return stats, err
		}
	}
	if g.factStore != nil {
		if stats.Facts, err = g.factStore.FactCount(ctx); err != nil {
			return stats, err
		}
	}
	if g.chunks != nil {
		if stats.Chunks, err = g.chunks.ChunkCount(ctx); err != nil {
			return stats, err
		}
	}
	if g.summaries != nil {
		if stats.Summaries, err = g.summaries.SummaryCount(ctx); err != nil {
			return stats, err
		}
	}
	if g.jobs != nil {
		if stats.Jobs, err = g.jobs.JobCount(ctx); err != nil {
			return stats, err
		}
	}
	return stats, nil
}
