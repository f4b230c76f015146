// Package sqlite implements the persistent storage module backing the
// memory engine. It uses modernc.org/sqlite (pure Go, no CGO) with an FTS5
// lexical index over facts and WAL mode, and owns the single database
// handle that every store shares.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flemzord/recall/internal/core"
	"github.com/flemzord/recall/internal/memory"
	"gopkg.in/yaml.v3"

	_ "modernc.org/sqlite" // SQLite driver registration
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ memory.ConversationStore = (*conversationStore)(nil)
	_ memory.FactStore         = (*factStore)(nil)
	_ memory.ChunkStore        = (*chunkStore)(nil)
	_ memory.SummaryStore      = (*summaryStore)(nil)
	_ memory.JobStore          = (*jobStore)(nil)
	_ core.Configurable        = (*Module)(nil)
	_ core.Provisioner         = (*Module)(nil)
	_ core.Validator           = (*Module)(nil)
	_ core.Stopper             = (*Module)(nil)
)

// Module is the SQLite storage module. It provisions the database once and
// registers one store service per entity for the wiring layer to discover.
type Module struct {
	config        Config
	db            *sql.DB
	logger        *slog.Logger
	conversations *conversationStore
	facts         *factStore
	chunks        *chunkStore
	summaries     *summaryStore
	jobs          *jobStore
}

type conversationStore struct {
	db *sql.DB
}

type factStore struct {
	db     *sql.DB
	logger *slog.Logger
}

type chunkStore struct {
	db *sql.DB
}

type summaryStore struct {
	db *sql.DB
}

type jobStore struct {
	db *sql.DB
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "storage.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	if dir := filepath.Dir(m.config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := openDB(m.config.Path, m.config.walEnabled(), m.config.BusyTimeout)
	if err != nil {
		return err
	}

	m.db = db
	m.conversations = &conversationStore{db: db}
	m.facts = &factStore{db: db, logger: ctx.Logger}
	m.chunks = &chunkStore{db: db}
	m.summaries = &summaryStore{db: db}
	m.jobs = &jobStore{db: db}

	// Recovery path: repopulate the lexical index if it is empty while
	// facts exist (fresh index file or prior corruption).
	if err := m.facts.backfillIfEmpty(context.TODO()); err != nil {
		_ = db.Close()
		return err
	}

	ctx.RegisterService("storage.conversations", m.conversations)
	ctx.RegisterService("storage.facts", m.facts)
	ctx.RegisterService("storage.chunks", m.chunks)
	ctx.RegisterService("storage.summaries", m.summaries)
	ctx.RegisterService("storage.jobs", m.jobs)

	m.logger.Info("sqlite storage module provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}

	if err := m.db.PingContext(context.TODO()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}

	// Verify the FTS5 virtual table is accessible.
	var n int
	if err := m.db.QueryRowContext(context.TODO(), "SELECT count(*) FROM facts_fts").Scan(&n); err != nil {
		return fmt.Errorf("sqlite: FTS5 not available: %w", err)
	}

	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite storage module stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Conversations returns the ConversationStore implementation.
func (m *Module) Conversations() memory.ConversationStore { return m.conversations }

// Facts returns the FactStore implementation.
func (m *Module) Facts() memory.FactStore { return m.facts }

// Chunks returns the ChunkStore implementation.
func (m *Module) Chunks() memory.ChunkStore { return m.chunks }

// Summaries returns the SummaryStore implementation.
func (m *Module) Summaries() memory.SummaryStore { return m.summaries }

// Jobs returns the JobStore implementation.
func (m *Module) Jobs() memory.JobStore { return m.jobs }

// openDB opens the database with engine pragmas applied and the schema migrated.
func openDB(path string, wal bool, busyTimeout int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// SQLite handles one writer at a time; limit the pool to 1 connection
	// so PRAGMAs apply consistently and statement execution serializes.
	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if wal {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
