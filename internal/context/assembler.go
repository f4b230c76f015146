package ctxengine

import (
	"context"
	"log/slog"

	"github.com/flemzord/recall/internal/memory"
)

// reserveTokens is held back from every budget for the response and
// system overhead; only the remainder is filled with history.
const reserveTokens = 10000

// summaryHeader prefixes the synthetic system message carrying the
// summary of messages that did not fit the budget.
const summaryHeader = "[Conversation Summary]\n"

// ConversationContext is a budgeted view of the conversation: the most
// recent messages that fit, preceded by a summary of the rest.
type ConversationContext struct {
	Messages        []memory.Message
	TotalTokens     int
	SummarizedCount int
	Summary         string
}

// Assembler records messages with token estimates and assembles
// budget-bounded conversation contexts.
type Assembler struct {
	messages  memory.ConversationStore
	pipeline  *Pipeline
	estimator TokenEstimator
	logger    *slog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(messages memory.ConversationStore, pipeline *Pipeline, estimator TokenEstimator, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if estimator == nil {
		estimator = NewCharEstimator(0)
	}
	return &Assembler{
		messages:  messages,
		pipeline:  pipeline,
		estimator: estimator,
		logger:    logger,
	}
}

// SaveMessage appends a message with its estimated token count and
// returns the assigned id.
func (a *Assembler) SaveMessage(ctx context.Context, role memory.Role, content string) (int64, error) {
	return a.messages.AppendMessage(ctx, role, content, a.estimator.Estimate(content))
}

// Context assembles the conversation view for tokenBudget. Messages are
// admitted newest first until the budget minus the reserve is exhausted;
// everything older is summarized into a synthetic system message placed
// ahead of the admitted messages. Summarizer failures propagate.
func (a *Assembler) Context(ctx context.Context, tokenBudget int) (*ConversationContext, error) {
	count, err := a.messages.MessageCount(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return &ConversationContext{Messages: []memory.Message{}}, nil
	}

	all, err := a.messages.RecentMessages(ctx, count)
	if err != nil {
		return nil, err
	}

	available := tokenBudget - reserveTokens
	if available < 0 {
		available = 0
	}

	// Admit from the newest backwards; all remains in ascending order so
	// the cut is a suffix.
	total := 0
	cut := len(all)
	for cut > 0 {
		next := all[cut-1].TokenCount
		if total+next > available {
			break
		}
		total += next
		cut--
	}

	result := &ConversationContext{
		Messages:        all[cut:],
		TotalTokens:     total,
		SummarizedCount: cut,
	}
	if cut == 0 {
		return result, nil
	}

	cutoffID := all[len(all)-1].ID + 1
	if cut < len(all) {
		cutoffID = all[cut].ID
	}
	summary, err := a.pipeline.SummarizeUpTo(ctx, cutoffID)
	if err != nil {
		return nil, err
	}
	if summary == "" {
		return result, nil
	}

	synthetic := memory.Message{
		Role:       memory.RoleSystem,
		Content:    summaryHeader + summary,
		TokenCount: a.estimator.Estimate(summaryHeader + summary),
	}
	result.Summary = summary
	result.Messages = append([]memory.Message{synthetic}, result.Messages...)
	result.TotalTokens += synthetic.TokenCount

	a.logger.Debug("context assembled",
		"messages", len(result.Messages),
		"summarized", result.SummarizedCount,
		"tokens", result.TotalTokens)
	return result, nil
}
