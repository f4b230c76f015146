package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Stores bundles every store implementation backed by one database handle.
// Returned by Open for callers outside the module lifecycle (tests, CLI
// inspection commands). The caller owns closing DB.
type Stores struct {
	DB            *sql.DB
	Conversations *conversationStore
	Facts         *factStore
	Chunks        *chunkStore
	Summaries     *summaryStore
	Jobs          *jobStore
}

// Open opens a SQLite database at the given path with WAL mode, a 5 s busy
// timeout, and a single connection (SQLite serializes writes). The schema
// is migrated automatically and the lexical index rebuilt if it is empty
// while facts exist.
func Open(path string, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := openDB(path, true, defaultBusyTimeout)
	if err != nil {
		return nil, err
	}

	stores := &Stores{
		DB:            db,
		Conversations: &conversationStore{db: db},
		Facts:         &factStore{db: db, logger: logger},
		Chunks:        &chunkStore{db: db},
		Summaries:     &summaryStore{db: db},
		Jobs:          &jobStore{db: db},
	}

	if err := stores.Facts.backfillIfEmpty(context.TODO()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return stores, nil
}
