package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flemzord/recall/internal/memory"
)

// AppendMessage persists a message and returns its assigned id.
// AUTOINCREMENT guarantees monotonic ids even across ClearConversation.
func (s *conversationStore) AppendMessage(ctx context.Context, role memory.Role, content string, tokenCount int) (int64, error) {
	if !role.Valid() {
		return 0, fmt.Errorf("%w: %q", memory.ErrInvalidRole, role)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (role, content, token_count)
		VALUES (?, ?, ?)`,
		string(role), content, tokenCount,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: append message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: message id: %w", err)
	}
	return id, nil
}

// RecentMessages returns the most recent limit messages in ascending id order.
func (s *conversationStore) RecentMessages(ctx context.Context, limit int) ([]memory.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	// Select the newest rows, then flip to chronological order in SQL.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, token_count, created_at FROM (
			SELECT id, role, content, token_count, created_at
			FROM messages
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMessages(rows)
}

// MessagesBetween returns messages with startID <= id <= endID, ascending.
func (s *conversationStore) MessagesBetween(ctx context.Context, startID, endID int64) ([]memory.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, token_count, created_at
		FROM messages
		WHERE id >= ? AND id <= ?
		ORDER BY id ASC`,
		startID, endID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: messages between: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMessages(rows)
}

// MessageCount returns the number of stored messages.
func (s *conversationStore) MessageCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count messages: %w", err)
	}
	return count, nil
}

// ClearConversation deletes all messages and all summaries in one
// transaction. Facts are untouched.
func (s *conversationStore) ClearConversation(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin clear tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("sqlite: clear messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM summaries"); err != nil {
		return fmt.Errorf("sqlite: clear summaries: %w", err)
	}

	return tx.Commit()
}

func scanMessages(rows *sql.Rows) ([]memory.Message, error) {
	var msgs []memory.Message
	for rows.Next() {
		var (
			msg       memory.Message
			role      string
			createdAt string
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.TokenCount, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		msg.Role = memory.Role(role)
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		msg.CreatedAt = t
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan message rows: %w", err)
	}
	return msgs, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", s, err)
	}
	return t, nil
}
