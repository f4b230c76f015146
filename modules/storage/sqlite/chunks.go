package sqlite

import (
	"context"
	"fmt"

	"github.com/flemzord/recall/internal/memory"
)

// ReplaceChunk deletes any prior chunk for the fact and inserts the new
// one in a single transaction: at most one live chunk per fact.
func (s *chunkStore) ReplaceChunk(ctx context.Context, factID int64, content string, embedding []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin replace chunk tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE fact_id = ?", factID); err != nil {
		return fmt.Errorf("sqlite: delete prior chunk: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chunks (fact_id, content, embedding)
		VALUES (?, ?, ?)`,
		factID, content, embedding,
	); err != nil {
		return fmt.Errorf("sqlite: insert chunk: %w", err)
	}

	return tx.Commit()
}

// RecentChunks returns up to limit chunks, most recent first. This is the
// bounded recency window the hybrid engine scans instead of the full table.
func (s *chunkStore) RecentChunks(ctx context.Context, limit int) ([]memory.Chunk, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fact_id, content, embedding, created_at
		FROM chunks
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []memory.Chunk
	for rows.Next() {
		var (
			c         memory.Chunk
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.FactID, &c.Content, &c.Embedding, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan chunk: %w", err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		c.CreatedAt = t
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: chunk rows: %w", err)
	}
	return chunks, nil
}

// FactsWithoutChunks returns facts that have no embedding chunk yet.
func (s *chunkStore) FactsWithoutChunks(ctx context.Context) ([]memory.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.category, f.subject, f.content, f.created_at, f.updated_at
		FROM facts f
		LEFT JOIN chunks c ON c.fact_id = f.id
		WHERE c.id IS NULL
		ORDER BY f.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: facts without chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFacts(rows)
}

// ChunkCount returns the number of stored chunks.
func (s *chunkStore) ChunkCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count chunks: %w", err)
	}
	return count, nil
}
