package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned by single-row lookups that match no row.
var ErrNotFound = errors.New("storage: not found")

// Queries wraps *sql.DB and exposes per-entity raw-SQL operations.
type Queries struct {
	db *sql.DB
}

// NewQueries constructs a Queries over the given connection pool.
func NewQueries(db *sql.DB) *Queries { return &Queries{db: db} }

// CreateMission inserts a new mission row. Called inside the caller's
// transaction when paired with the initial MissionEvent/OutboxEntry insert.
func (q *Queries) CreateMission(ctx context.Context, exec Executor, m *Mission) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO missions (id, goal, status, idempotency_key, iteration_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Goal, m.Status, m.IdempotencyKey, m.IterationCount, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting mission: %w", err)
	}
	return nil
}

// GetMission fetches a mission by ID.
func (q *Queries) GetMission(ctx context.Context, id string) (*Mission, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, goal, status, idempotency_key, result, error_message,
		       iteration_count, created_at, started_at, completed_at
		FROM missions WHERE id = $1`, id)
	return scanMission(row)
}

// GetMissionByIdempotencyKey fetches a mission by its creation dedupe key,
// used by the Orchestrator Entry Point to return the cached mission view
// on a duplicate mission-creation request.
func (q *Queries) GetMissionByIdempotencyKey(ctx context.Context, key string) (*Mission, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, goal, status, idempotency_key, result, error_message,
		       iteration_count, created_at, started_at, completed_at
		FROM missions WHERE idempotency_key = $1`, key)
	return scanMission(row)
}

func scanMission(row *sql.Row) (*Mission, error) {
	var m Mission
	err := row.Scan(&m.ID, &m.Goal, &m.Status, &m.IdempotencyKey, &m.Result, &m.ErrorMessage,
		&m.IterationCount, &m.CreatedAt, &m.StartedAt, &m.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning mission: %w", err)
	}
	return &m, nil
}

// UpdateMissionStatus transitions a mission's status and, for terminal
// transitions, stamps completed_at and persists the result/error.
func (q *Queries) UpdateMissionStatus(ctx context.Context, exec Executor, id string, status MissionStatus, result []byte, errMsg *string, completedAt any) error {
	_, err := exec.ExecContext(ctx, `
		UPDATE missions
		SET status = $2, result = COALESCE($3, result), error_message = $4, completed_at = $5
		WHERE id = $1`,
		id, status, result, errMsg, completedAt)
	if err != nil {
		return fmt.Errorf("updating mission status: %w", err)
	}
	return nil
}

// MarkMissionStarted sets status=running and stamps started_at.
func (q *Queries) MarkMissionStarted(ctx context.Context, exec Executor, id string, startedAt any) error {
	_, err := exec.ExecContext(ctx, `
		UPDATE missions SET status = 'running', started_at = $2 WHERE id = $1`,
		id, startedAt)
	if err != nil {
		return fmt.Errorf("marking mission started: %w", err)
	}
	return nil
}

// IncrementIterationCount bumps a mission's supervisor re-plan counter and
// returns the new value. The supervisor does not call it; it counts its
// iterations in memory.
func (q *Queries) IncrementIterationCount(ctx context.Context, exec Executor, id string) (int, error) {
	var count int
	err := exec.QueryRowContext(ctx, `
		UPDATE missions SET iteration_count = iteration_count + 1
		WHERE id = $1 RETURNING iteration_count`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("incrementing iteration count: %w", err)
	}
	return count, nil
}

// ListMissions returns missions ordered by creation time, most recent first,
// bounded by limit.
func (q *Queries) ListMissions(ctx context.Context, limit int) ([]*Mission, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, goal, status, idempotency_key, result, error_message,
		       iteration_count, created_at, started_at, completed_at
		FROM missions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing missions: %w", err)
	}
	defer rows.Close()

	var out []*Mission
	for rows.Next() {
		var m Mission
		if err := rows.Scan(&m.ID, &m.Goal, &m.Status, &m.IdempotencyKey, &m.Result, &m.ErrorMessage,
			&m.IterationCount, &m.CreatedAt, &m.StartedAt, &m.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning mission row: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
