package cron

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/recall/internal/core"
	"github.com/flemzord/recall/internal/memory"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Config holds scheduler module settings.
type Config struct {
	// BackfillSchedule overrides the embedding backfill cadence.
	BackfillSchedule string `yaml:"backfill_schedule"`

	// Backfill disables the embedding reconciliation job when false.
	Backfill *bool `yaml:"backfill"`
}

func (c *Config) backfillEnabled() bool {
	return c.Backfill == nil || *c.Backfill
}

// Module runs the cron scheduler: one embedding backfill job plus every
// enabled persisted prompt job. Dependencies are resolved lazily at
// Start so module load order does not matter.
type Module struct {
	config    Config
	appCtx    *core.AppContext
	scheduler *Scheduler
	logger    *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "scheduler.cron",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("cron: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.scheduler = NewScheduler(ctx.Logger)
	return nil
}

// Start implements core.Starter. The job store is required; the indexer
// and runner services are optional. Persisted jobs are loaded once at
// startup; rows added later are picked up on the next restart.
func (m *Module) Start() error {
	svc, ok := m.appCtx.Service("storage.jobs")
	if !ok {
		return fmt.Errorf("cron: storage.jobs service not registered")
	}
	jobs, ok := svc.(memory.JobStore)
	if !ok {
		return fmt.Errorf("cron: storage.jobs service has type %T", svc)
	}

	var indexer Backfiller
	if svc, ok := m.appCtx.Service("embedding.indexer"); ok {
		indexer, _ = svc.(Backfiller)
	}
	var runner Runner
	if svc, ok := m.appCtx.Service("cron.runner"); ok {
		runner, _ = svc.(Runner)
	}

	if m.config.backfillEnabled() && indexer != nil {
		job := &BackfillJob{
			Indexer:      indexer,
			Logger:       m.logger,
			ScheduleExpr: m.config.BackfillSchedule,
		}
		if err := m.scheduler.RegisterJob(job); err != nil {
			return err
		}
	}

	rows, err := jobs.Jobs(context.Background())
	if err != nil {
		return fmt.Errorf("cron: load jobs: %w", err)
	}
	for _, row := range rows {
		if !row.Enabled {
			continue
		}
		job := &PromptJob{Job: row, Runner: runner, Logger: m.logger}
		if err := m.scheduler.RegisterJob(job); err != nil {
			// Unique names are enforced by storage; a duplicate here is a
			// programming error worth failing on.
			return err
		}
	}

	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// Scheduler exposes the underlying scheduler for status reporting.
func (m *Module) Scheduler() *Scheduler { return m.scheduler }
