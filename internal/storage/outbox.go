package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertOutboxEntry inserts a pending outbox entry, called in the same
// transaction as the domain mutation and MissionEvent append it
// accompanies.
func (q *Queries) InsertOutboxEntry(ctx context.Context, exec Executor, e *OutboxEntry) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO outbox_entries (id, mission_id, topic, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.MissionID, e.Topic, e.Payload, OutboxPending, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting outbox entry: %w", err)
	}
	return nil
}

// ClaimPendingOutboxEntries locks up to limit pending rows with
// FOR UPDATE SKIP LOCKED so concurrent workers never claim the same row,
// mirroring the teacher's pkg/queue claimNextSession idiom.
func (q *Queries) ClaimPendingOutboxEntries(ctx context.Context, tx *sql.Tx, limit int) ([]*OutboxEntry, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, mission_id, topic, payload, status, retry_count, last_error, created_at, processed_at
		FROM outbox_entries
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("claiming outbox entries: %w", err)
	}
	defer rows.Close()

	var out []*OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.MissionID, &e.Topic, &e.Payload, &e.Status,
			&e.RetryCount, &e.LastError, &e.CreatedAt, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scanning outbox entry row: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// MarkOutboxProcessed marks an entry processed and stamps processed_at.
func (q *Queries) MarkOutboxProcessed(ctx context.Context, exec Executor, id string, processedAt any) error {
	_, err := exec.ExecContext(ctx, `
		UPDATE outbox_entries SET status = 'processed', processed_at = $2 WHERE id = $1`,
		id, processedAt)
	if err != nil {
		return fmt.Errorf("marking outbox entry processed: %w", err)
	}
	return nil
}

// MarkOutboxFailed increments the retry count and records the error. When
// this failure would bring retry_count to the worker's configured max, the
// caller transitions status to 'failed' via MarkOutboxTerminalFailure
// instead.
func (q *Queries) MarkOutboxFailed(ctx context.Context, exec Executor, id string, errMsg string) error {
	_, err := exec.ExecContext(ctx, `
		UPDATE outbox_entries SET retry_count = retry_count + 1, last_error = $2 WHERE id = $1`,
		id, errMsg)
	if err != nil {
		return fmt.Errorf("marking outbox entry failed: %w", err)
	}
	return nil
}

// MarkOutboxTerminalFailure marks an entry permanently failed after
// exhausting its retry budget.
func (q *Queries) MarkOutboxTerminalFailure(ctx context.Context, exec Executor, id string, errMsg string) error {
	_, err := exec.ExecContext(ctx, `
		UPDATE outbox_entries SET status = 'failed', last_error = $2 WHERE id = $1`,
		id, errMsg)
	if err != nil {
		return fmt.Errorf("marking outbox entry terminally failed: %w", err)
	}
	return nil
}

// PurgeProcessedOutboxEntries deletes processed rows older than the
// retention window, resolving the "outbox retention" Open Question.
func (q *Queries) PurgeProcessedOutboxEntries(ctx context.Context, olderThan any) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM outbox_entries WHERE status = 'processed' AND processed_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purging processed outbox entries: %w", err)
	}
	return res.RowsAffected()
}
