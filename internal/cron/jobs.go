package cron

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/recall/internal/memory"
)

// Runner delivers a scheduled prompt to its target channel. The concrete
// delivery mechanism (assistant invocation, webhook) lives outside this
// package.
type Runner interface {
	RunPrompt(ctx context.Context, prompt, channel string) error
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, prompt, channel string) error

// RunPrompt implements Runner.
func (f RunnerFunc) RunPrompt(ctx context.Context, prompt, channel string) error {
	return f(ctx, prompt, channel)
}

// PromptJob executes one persisted job row on its schedule.
type PromptJob struct {
	Job    memory.Job
	Runner Runner // nil logs the trigger without delivering
	Logger *slog.Logger
}

var _ Job = (*PromptJob)(nil)

// Name implements Job. Persisted names are unique, so the row name is
// enough for dedup.
func (j *PromptJob) Name() string { return "prompt:" + j.Job.Name }

// Schedule implements Job.
func (j *PromptJob) Schedule() string { return j.Job.Schedule }

// Run delivers the stored prompt to the stored channel.
func (j *PromptJob) Run(ctx context.Context) error {
	if j.Runner == nil {
		j.Logger.Info("cron: prompt job triggered without a runner",
			"job", j.Job.Name, "channel", j.Job.Channel)
		return nil
	}
	if err := j.Runner.RunPrompt(ctx, j.Job.Prompt, j.Job.Channel); err != nil {
		return fmt.Errorf("cron: prompt job %q: %w", j.Job.Name, err)
	}
	return nil
}

// Backfiller embeds facts that have no chunk yet and reports how many
// were embedded.
type Backfiller interface {
	Backfill(ctx context.Context) (int, error)
	Enabled() bool
}

// BackfillJob periodically reconciles facts missing an embedding chunk.
// It closes the inconsistency window left by fire-and-forget embedding.
type BackfillJob struct {
	Indexer      Backfiller
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/15 * * * *"
}

var _ Job = (*BackfillJob)(nil)

// Name implements Job.
func (j *BackfillJob) Name() string { return "embedding_backfill" }

// Schedule implements Job.
func (j *BackfillJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/15 * * * *"
}

// Run embeds every fact lacking a chunk. A disabled indexer makes this
// a no-op.
func (j *BackfillJob) Run(ctx context.Context) error {
	if j.Indexer == nil || !j.Indexer.Enabled() {
		return nil
	}
	n, err := j.Indexer.Backfill(ctx)
	if err != nil {
		return fmt.Errorf("cron: embedding backfill: %w", err)
	}
	if n > 0 {
		j.Logger.Info("cron: backfilled embeddings", "count", n)
	}
	return nil
}
