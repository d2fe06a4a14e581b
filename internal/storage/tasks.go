package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateTask inserts a new task row.
func (q *Queries) CreateTask(ctx context.Context, exec Executor, t *Task) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO tasks (id, mission_id, ordinal, node, status, input, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.MissionID, t.Ordinal, t.Node, t.Status, t.Input, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// CompleteTask records a task's terminal outcome.
func (q *Queries) CompleteTask(ctx context.Context, exec Executor, id string, status TaskStatus, output []byte, errMsg *string, completedAt any) error {
	_, err := exec.ExecContext(ctx, `
		UPDATE tasks SET status = $2, output = $3, error_message = $4, completed_at = $5
		WHERE id = $1`,
		id, status, output, errMsg, completedAt)
	if err != nil {
		return fmt.Errorf("completing task: %w", err)
	}
	return nil
}

// ListTasksByMission returns a mission's tasks ordered by ordinal.
func (q *Queries) ListTasksByMission(ctx context.Context, missionID string) ([]*Task, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, mission_id, ordinal, node, status, input, output, error_message, created_at, completed_at
		FROM tasks WHERE mission_id = $1 ORDER BY ordinal ASC`, missionID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.MissionID, &t.Ordinal, &t.Node, &t.Status,
			&t.Input, &t.Output, &t.ErrorMessage, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// NextOrdinal returns the next task ordinal for a mission (current max + 1).
func (q *Queries) NextOrdinal(ctx context.Context, exec Executor, missionID string) (int, error) {
	var maxOrdinal sql.NullInt64
	err := exec.QueryRowContext(ctx, `
		SELECT MAX(ordinal) FROM tasks WHERE mission_id = $1`, missionID).Scan(&maxOrdinal)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("computing next ordinal: %w", err)
	}
	if !maxOrdinal.Valid {
		return 0, nil
	}
	return int(maxOrdinal.Int64) + 1, nil
}
