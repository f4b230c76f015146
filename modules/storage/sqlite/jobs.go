package sqlite

import (
	"context"
	"fmt"

	"github.com/flemzord/recall/internal/memory"
)

// CreateJob inserts a scheduler job row and returns its id.
func (s *jobStore) CreateJob(ctx context.Context, j memory.Job) (int64, error) {
	enabled := 0
	if j.Enabled {
		enabled = 1
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (name, schedule, prompt, channel, enabled)
		VALUES (?, ?, ?, ?, ?)`,
		j.Name, j.Schedule, j.Prompt, j.Channel, enabled,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: create job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: job id: %w", err)
	}
	return id, nil
}

// Jobs returns all jobs ordered by name.
func (s *jobStore) Jobs(ctx context.Context) ([]memory.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, schedule, prompt, channel, enabled, created_at
		FROM jobs
		ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []memory.Job
	for rows.Next() {
		var (
			j         memory.Job
			enabled   int
			createdAt string
		)
		if err := rows.Scan(&j.ID, &j.Name, &j.Schedule, &j.Prompt, &j.Channel, &enabled, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan job: %w", err)
		}
		j.Enabled = enabled != 0
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		j.CreatedAt = t
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: job rows: %w", err)
	}
	return jobs, nil
}

// SetJobEnabled toggles a job. Returns memory.ErrJobNotFound for unknown ids.
func (s *jobStore) SetJobEnabled(ctx context.Context, id int64, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}

	result, err := s.db.ExecContext(ctx, "UPDATE jobs SET enabled = ? WHERE id = ?", v, id)
	if err != nil {
		return fmt.Errorf("sqlite: set job enabled: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return memory.ErrJobNotFound
	}
	return nil
}

// DeleteJob removes a job. Returns memory.ErrJobNotFound for unknown ids.
func (s *jobStore) DeleteJob(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: delete job: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return memory.ErrJobNotFound
	}
	return nil
}

// JobCount returns the number of stored jobs.
func (s *jobStore) JobCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count jobs: %w", err)
	}
	return count, nil
}
