package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flemzord/recall/internal/memory"
)

// SaveSummary persists a summary and returns its id.
func (s *summaryStore) SaveSummary(ctx context.Context, sum memory.Summary) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (start_message_id, end_message_id, content, token_count)
		VALUES (?, ?, ?, ?)`,
		sum.StartMessageID, sum.EndMessageID, sum.Content, sum.TokenCount,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: save summary: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: summary id: %w", err)
	}
	return id, nil
}

// SummaryByEnd returns the summary whose range ends exactly at endID.
func (s *summaryStore) SummaryByEnd(ctx context.Context, endID int64) (*memory.Summary, error) {
	return s.querySummary(ctx, `
		SELECT id, start_message_id, end_message_id, content, token_count, created_at
		FROM summaries
		WHERE end_message_id = ?
		ORDER BY id DESC
		LIMIT 1`,
		endID,
	)
}

// LatestSummaryBefore returns the summary with the largest end_message_id
// strictly below endID.
func (s *summaryStore) LatestSummaryBefore(ctx context.Context, endID int64) (*memory.Summary, error) {
	return s.querySummary(ctx, `
		SELECT id, start_message_id, end_message_id, content, token_count, created_at
		FROM summaries
		WHERE end_message_id < ?
		ORDER BY end_message_id DESC
		LIMIT 1`,
		endID,
	)
}

// PruneSummaries keeps only the keep most recent summaries by
// end_message_id. A later summary supersedes the ranges it covers.
func (s *summaryStore) PruneSummaries(ctx context.Context, keep int) error {
	if keep <= 0 {
		return fmt.Errorf("sqlite: prune keep must be positive, got %d", keep)
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM summaries WHERE id NOT IN (
			SELECT id FROM summaries
			ORDER BY end_message_id DESC, id DESC
			LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return fmt.Errorf("sqlite: prune summaries: %w", err)
	}
	return nil
}

// SummaryCount returns the number of stored summaries.
func (s *summaryStore) SummaryCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM summaries").Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count summaries: %w", err)
	}
	return count, nil
}

func (s *summaryStore) querySummary(ctx context.Context, query string, args ...any) (*memory.Summary, error) {
	var (
		sum       memory.Summary
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&sum.ID, &sum.StartMessageID, &sum.EndMessageID, &sum.Content, &sum.TokenCount, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: query summary: %w", err)
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	sum.CreatedAt = t
	return &sum, nil
}
