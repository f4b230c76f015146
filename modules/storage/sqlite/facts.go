package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/flemzord/recall/internal/memory"
)

// SaveFact upserts by (category, subject), keeping the existing id on
// conflict, and mirrors the change into the lexical index in the same
// transaction so index content always matches the live fact set.
func (s *factStore) SaveFact(ctx context.Context, category, subject, content string) (memory.Fact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return memory.Fact{}, fmt.Errorf("sqlite: begin save fact tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO facts (category, subject, content)
		VALUES (?, ?, ?)
		ON CONFLICT (category, subject) DO UPDATE SET
			content    = excluded.content,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')`,
		category, subject, content,
	)
	if err != nil {
		return memory.Fact{}, fmt.Errorf("sqlite: save fact: %w", err)
	}

	fact, err := scanFact(tx.QueryRowContext(ctx, `
		SELECT id, category, subject, content, created_at, updated_at
		FROM facts WHERE category = ? AND subject = ?`,
		category, subject,
	))
	if err != nil {
		return memory.Fact{}, err
	}

	// Explicit index sync: replace the indexed row for this fact.
	if _, err := tx.ExecContext(ctx, "DELETE FROM facts_fts WHERE rowid = ?", fact.ID); err != nil {
		return memory.Fact{}, fmt.Errorf("sqlite: deindex fact: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO facts_fts (rowid, category, subject, content)
		VALUES (?, ?, ?, ?)`,
		fact.ID, fact.Category, fact.Subject, fact.Content,
	); err != nil {
		return memory.Fact{}, fmt.Errorf("sqlite: index fact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return memory.Fact{}, fmt.Errorf("sqlite: commit save fact: %w", err)
	}
	return fact, nil
}

// Fact returns the fact with the given id.
func (s *factStore) Fact(ctx context.Context, id int64) (memory.Fact, error) {
	fact, err := scanFact(s.db.QueryRowContext(ctx, `
		SELECT id, category, subject, content, created_at, updated_at
		FROM facts WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Fact{}, memory.ErrFactNotFound
	}
	return fact, err
}

// FactsByID returns the facts for the given ids, omitting missing ones.
func (s *factStore) FactsByID(ctx context.Context, ids []int64) ([]memory.Fact, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, subject, content, created_at, updated_at
		FROM facts WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: facts by id: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFacts(rows)
}

// AllFacts returns every fact ordered by category then subject, the
// deterministic order required for stable prompt rendering.
func (s *factStore) AllFacts(ctx context.Context) ([]memory.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, subject, content, created_at, updated_at
		FROM facts
		ORDER BY category ASC, subject ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: all facts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFacts(rows)
}

// DeleteFact removes a fact, its index row, and its chunk in one transaction.
func (s *factStore) DeleteFact(ctx context.Context, id int64) error {
	return s.deleteWhere(ctx, "id = ?", id)
}

// DeleteFactBySubject removes the fact for (category, subject).
func (s *factStore) DeleteFactBySubject(ctx context.Context, category, subject string) error {
	return s.deleteWhere(ctx, "category = ? AND subject = ?", category, subject)
}

func (s *factStore) deleteWhere(ctx context.Context, cond string, args ...any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin delete fact tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM facts WHERE "+cond, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.ErrFactNotFound
	}
	if err != nil {
		return fmt.Errorf("sqlite: lookup fact: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM facts WHERE id = ?", id); err != nil {
		return fmt.Errorf("sqlite: delete fact: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM facts_fts WHERE rowid = ?", id); err != nil {
		return fmt.Errorf("sqlite: deindex fact: %w", err)
	}
	// Cascade: the fact owns its chunk.
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE fact_id = ?", id); err != nil {
		return fmt.Errorf("sqlite: delete fact chunks: %w", err)
	}

	return tx.Commit()
}

// SearchFacts is the substring fallback path: case-insensitive match
// across content, subject, and category, independent of the hybrid engine.
func (s *factStore) SearchFacts(ctx context.Context, query, category string) ([]memory.Fact, error) {
	pattern := "%" + strings.ToLower(query) + "%"

	q := `
		SELECT id, category, subject, content, created_at, updated_at
		FROM facts
		WHERE (lower(content) LIKE ? OR lower(subject) LIKE ? OR lower(category) LIKE ?)`
	args := []any{pattern, pattern, pattern}

	if category != "" {
		q += " AND category = ?"
		args = append(args, category)
	}
	q += " ORDER BY category ASC, subject ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search facts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFacts(rows)
}

// SearchLexical runs a ranked FTS5 query and returns the raw bm25 ranks.
// The query is tokenized and quoted so user punctuation cannot break the
// MATCH expression; tokens are OR-combined for lenient recall.
func (s *factStore) SearchLexical(ctx context.Context, query string, limit int) ([]memory.LexicalMatch, error) {
	match := ftsQuery(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, rank
		FROM facts_fts
		WHERE facts_fts MATCH ?
		ORDER BY rank
		LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: lexical search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []memory.LexicalMatch
	for rows.Next() {
		var m memory.LexicalMatch
		if err := rows.Scan(&m.FactID, &m.Rank); err != nil {
			return nil, fmt.Errorf("sqlite: scan lexical match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: lexical rows: %w", err)
	}
	return matches, nil
}

// RebuildIndex repopulates the lexical index from the fact table.
func (s *factStore) RebuildIndex(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin rebuild tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM facts_fts"); err != nil {
		return fmt.Errorf("sqlite: clear index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO facts_fts (rowid, category, subject, content)
		SELECT id, category, subject, content FROM facts`,
	); err != nil {
		return fmt.Errorf("sqlite: rebuild index: %w", err)
	}

	return tx.Commit()
}

// FactCount returns the number of stored facts.
func (s *factStore) FactCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM facts").Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count facts: %w", err)
	}
	return count, nil
}

// backfillIfEmpty rebuilds the lexical index when it is empty while facts
// exist. Called on provision as the recovery path for new or damaged indexes.
func (s *factStore) backfillIfEmpty(ctx context.Context) error {
	var indexed, facts int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM facts_fts").Scan(&indexed); err != nil {
		return fmt.Errorf("sqlite: count index: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM facts").Scan(&facts); err != nil {
		return fmt.Errorf("sqlite: count facts: %w", err)
	}

	if indexed > 0 || facts == 0 {
		return nil
	}

	if err := s.RebuildIndex(ctx); err != nil {
		return err
	}
	s.logger.Info("lexical index rebuilt from facts", "facts", facts)
	return nil
}

// ftsQuery turns free text into a safe FTS5 MATCH expression.
func ftsQuery(query string) string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + f + `"`
	}
	return strings.Join(quoted, " OR ")
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanFact(sc scanner) (memory.Fact, error) {
	var (
		fact      memory.Fact
		createdAt string
		updatedAt string
	)
	if err := sc.Scan(&fact.ID, &fact.Category, &fact.Subject, &fact.Content, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fact, err
		}
		return fact, fmt.Errorf("sqlite: scan fact: %w", err)
	}

	var err error
	if fact.CreatedAt, err = parseTime(createdAt); err != nil {
		return fact, err
	}
	if fact.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return fact, err
	}
	return fact, nil
}

func scanFacts(rows *sql.Rows) ([]memory.Fact, error) {
	var facts []memory.Fact
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan fact rows: %w", err)
	}
	return facts, nil
}
