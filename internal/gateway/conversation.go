package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/flemzord/recall/internal/memory"
)

// messageJSON is the serialized message shape.
type messageJSON struct {
	ID         int64  `json:"id"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
	CreatedAt  string `json:"created_at"`
}

func toMessageList(msgs []memory.Message) []messageJSON {
	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageJSON{
			ID:         m.ID,
			Role:       string(m.Role),
			Content:    m.Content,
			TokenCount: m.TokenCount,
			CreatedAt:  m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// handleListMessages serves GET /api/messages with an optional limit.
func (g *Gateway) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.conversations == nil {
			writeError(w, http.StatusServiceUnavailable, "conversation store unavailable")
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}

		msgs, err := g.conversations.RecentMessages(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toMessageList(msgs))
	}
}

// saveMessageRequest is the POST /api/messages payload.
type saveMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handleSaveMessage appends a conversation turn for POST /api/messages.
func (g *Gateway) handleSaveMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.assembler == nil {
			writeError(w, http.StatusServiceUnavailable, "context engine unavailable")
			return
		}

		var req saveMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		id, err := g.assembler.SaveMessage(r.Context(), memory.Role(req.Role), req.Content)
		if errors.Is(err, memory.ErrInvalidRole) {
			writeError(w, http.StatusBadRequest, "invalid role")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"id": id})
	}
}

// conversationContextJSON is the assembled context payload.
type conversationContextJSON struct {
	Messages        []messageJSON `json:"messages"`
	TotalTokens     int           `json:"total_tokens"`
	SummarizedCount int           `json:"summarized_count"`
	Summary         string        `json:"summary,omitempty"`
}

// handleConversationContext serves GET /api/context/conversation. The
// budget query parameter overrides the configured default.
func (g *Gateway) handleConversationContext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.assembler == nil {
			writeError(w, http.StatusServiceUnavailable, "context engine unavailable")
			return
		}

		budget := g.config.DefaultBudget
		if raw := r.URL.Query().Get("budget"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid budget")
				return
			}
			budget = n
		}

		cc, err := g.assembler.Context(r.Context(), budget)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		g.metrics.RecordContext()

		writeJSON(w, http.StatusOK, conversationContextJSON{
			Messages:        toMessageList(cc.Messages),
			TotalTokens:     cc.TotalTokens,
			SummarizedCount: cc.SummarizedCount,
			Summary:         cc.Summary,
		})
	}
}

// handleClearConversation wipes messages and summaries for
// DELETE /api/conversation. Facts survive.
func (g *Gateway) handleClearConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.conversations == nil {
			writeError(w, http.StatusServiceUnavailable, "conversation store unavailable")
			return
		}
		if err := g.conversations.ClearConversation(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
