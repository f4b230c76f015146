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

// jobJSON is the serialized job shape.
type jobJSON struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Schedule  string `json:"schedule"`
	Prompt    string `json:"prompt"`
	Channel   string `json:"channel"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"created_at"`
}

// handleListJobs serves GET /api/jobs.
func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.jobs == nil {
			writeError(w, http.StatusServiceUnavailable, "job store unavailable")
			return
		}

		rows, err := g.jobs.Jobs(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		out := make([]jobJSON, 0, len(rows))
		for _, j := range rows {
			out = append(out, jobJSON{
				ID:        j.ID,
				Name:      j.Name,
				Schedule:  j.Schedule,
				Prompt:    j.Prompt,
				Channel:   j.Channel,
				Enabled:   j.Enabled,
				CreatedAt: j.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// createJobRequest is the POST /api/jobs payload.
type createJobRequest struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Prompt   string `json:"prompt"`
	Channel  string `json:"channel"`
	Enabled  *bool  `json:"enabled"`
}

// handleCreateJob persists a scheduler job for POST /api/jobs. The
// scheduler picks new rows up on the next restart.
func (g *Gateway) handleCreateJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.jobs == nil {
			writeError(w, http.StatusServiceUnavailable, "job store unavailable")
			return
		}

		var req createJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == "" || req.Schedule == "" {
			writeError(w, http.StatusBadRequest, "name and schedule are required")
			return
		}

		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}

		id, err := g.jobs.CreateJob(r.Context(), memory.Job{
			Name:     req.Name,
			Schedule: req.Schedule,
			Prompt:   req.Prompt,
			Channel:  req.Channel,
			Enabled:  enabled,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	}
}

// setJobEnabledRequest is the PATCH /api/jobs/{id} payload.
type setJobEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// handleSetJobEnabled toggles a job for PATCH /api/jobs/{id}.
func (g *Gateway) handleSetJobEnabled() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.jobs == nil {
			writeError(w, http.StatusServiceUnavailable, "job store unavailable")
			return
		}

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid job id")
			return
		}

		var req setJobEnabledRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		switch err := g.jobs.SetJobEnabled(r.Context(), id, req.Enabled); {
		case errors.Is(err, memory.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// handleDeleteJob removes a job for DELETE /api/jobs/{id}.
func (g *Gateway) handleDeleteJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.jobs == nil {
			writeError(w, http.StatusServiceUnavailable, "job store unavailable")
			return
		}

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid job id")
			return
		}

		switch err := g.jobs.DeleteJob(r.Context(), id); {
		case errors.Is(err, memory.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}
