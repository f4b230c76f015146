package ctxengine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flemzord/recall/internal/memory"
)

const (
	// summaryRetention is how many summaries survive pruning. A later
	// summary with a higher end id supersedes the ranges it covers.
	summaryRetention = 3

	// Bounds for the deterministic basic summary.
	basicMaxUserMessages = 20
	basicMaxSnippets     = 10
	basicSnippetLen      = 100
)

// Summarizer produces a condensed summary of a conversation segment.
// Typically backed by an external model call; errors propagate to the
// caller of Context.
type Summarizer interface {
	Summarize(ctx context.Context, messages []memory.Message) (string, error)
}

// SummarizerFunc adapts a plain function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, messages []memory.Message) (string, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, messages []memory.Message) (string, error) {
	return f(ctx, messages)
}

// Pipeline owns Summary lifecycle: it reuses exact summaries, extends
// partial ones by summarizing only the delta, and falls back to a
// deterministic heuristic when no summarizer is configured.
type Pipeline struct {
	messages   memory.ConversationStore
	summaries  memory.SummaryStore
	summarizer Summarizer // nil means basic summaries only
	estimator  TokenEstimator
	logger     *slog.Logger
}

// NewPipeline creates a Pipeline. A nil summarizer selects the basic
// deterministic summary for every range.
func NewPipeline(
	messages memory.ConversationStore,
	summaries memory.SummaryStore,
	summarizer Summarizer,
	estimator TokenEstimator,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if estimator == nil {
		estimator = NewCharEstimator(0)
	}
	return &Pipeline{
		messages:   messages,
		summaries:  summaries,
		summarizer: summarizer,
		estimator:  estimator,
		logger:     logger,
	}
}

// SummarizeUpTo returns summary text covering every message with id below
// cutoffID. Resolution order per cutoff:
//
//  1. a stored summary ending exactly at cutoffID-1 is reused unchanged
//  2. with a summarizer configured, the latest earlier summary is
//     extended by summarizing only the delta range
//  3. with a summarizer configured but no prior summary, the whole range
//     is summarized from scratch
//  4. without a summarizer, the deterministic basic summary is produced
//
// New summaries are persisted and the store pruned to the retention limit.
func (p *Pipeline) SummarizeUpTo(ctx context.Context, cutoffID int64) (string, error) {
	endID := cutoffID - 1

	exact, err := p.summaries.SummaryByEnd(ctx, endID)
	if err != nil {
		return "", err
	}
	if exact != nil {
		return exact.Content, nil
	}

	partial, err := p.summaries.LatestSummaryBefore(ctx, endID)
	if err != nil {
		return "", err
	}

	var (
		content string
		startID int64
	)

	switch {
	case partial != nil && p.summarizer != nil:
		content, err = p.extendSummary(ctx, partial, endID)
		startID = partial.StartMessageID

	case p.summarizer != nil:
		var msgs []memory.Message
		msgs, err = p.messages.MessagesBetween(ctx, 1, endID)
		if err != nil {
			break
		}
		if len(msgs) == 0 {
			return "", nil
		}
		startID = msgs[0].ID
		content, err = p.summarizer.Summarize(ctx, msgs)

	default:
		var msgs []memory.Message
		msgs, err = p.messages.MessagesBetween(ctx, 1, endID)
		if err != nil {
			break
		}
		if len(msgs) == 0 {
			return "", nil
		}
		startID = msgs[0].ID
		content = basicSummary(msgs)
	}
	if err != nil {
		return "", fmt.Errorf("ctxengine: summarize through %d: %w", endID, err)
	}

	if _, err := p.summaries.SaveSummary(ctx, memory.Summary{
		StartMessageID: startID,
		EndMessageID:   endID,
		Content:        content,
		TokenCount:     p.estimator.Estimate(content),
	}); err != nil {
		return "", err
	}
	if err := p.summaries.PruneSummaries(ctx, summaryRetention); err != nil {
		return "", err
	}

	p.logger.Debug("summary stored", "start", startID, "end", endID, "extended", partial != nil)
	return content, nil
}

// extendSummary summarizes only the messages after the partial summary,
// seeded with a synthetic line carrying the partial's content, producing
// one summary for the combined range. This bounds summarization cost to
// the delta instead of resummarizing from scratch.
func (p *Pipeline) extendSummary(ctx context.Context, partial *memory.Summary, endID int64) (string, error) {
	delta, err := p.messages.MessagesBetween(ctx, partial.EndMessageID+1, endID)
	if err != nil {
		return "", err
	}

	seed := memory.Message{
		Role:    memory.RoleSystem,
		Content: "Summary of the conversation so far: " + partial.Content,
	}
	return p.summarizer.Summarize(ctx, append([]memory.Message{seed}, delta...))
}

// basicSummary is the deterministic, bounded fallback: up to
// basicMaxSnippets distinct truncated snippets drawn from at most the
// last basicMaxUserMessages user-authored messages in the range.
// Reproducible given identical input.
func basicSummary(msgs []memory.Message) string {
	var users []memory.Message
	for i := range msgs {
		if msgs[i].Role == memory.RoleUser {
			users = append(users, msgs[i])
		}
	}
	if len(users) > basicMaxUserMessages {
		users = users[len(users)-basicMaxUserMessages:]
	}

	seen := make(map[string]struct{})
	var snippets []string
	for i := range users {
		s := strings.TrimSpace(users[i].Content)
		if len(s) > basicSnippetLen {
			s = s[:basicSnippetLen]
		}
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		snippets = append(snippets, s)
		if len(snippets) == basicMaxSnippets {
			break
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Earlier conversation (%d messages). The user said:\n", len(msgs))
	for _, s := range snippets {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
