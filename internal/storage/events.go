package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AppendMissionEvent assigns the next strictly increasing sequence number
// for mission_id and inserts the event, all within the caller's
// transaction — callers must hold the mission-scoped lock so the
// SELECT MAX + INSERT pair is race-free across concurrent writers on the
// same mission (concurrent writers on different missions never contend).
func (q *Queries) AppendMissionEvent(ctx context.Context, exec Executor, e *MissionEvent) error {
	var maxSeq sql.NullInt64
	err := exec.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM mission_events WHERE mission_id = $1`, e.MissionID).Scan(&maxSeq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("computing next sequence: %w", err)
	}
	e.Sequence = 1
	if maxSeq.Valid {
		e.Sequence = int(maxSeq.Int64) + 1
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO mission_events (id, mission_id, sequence, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.MissionID, e.Sequence, e.EventType, e.Payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting mission event: %w", err)
	}
	return nil
}

// GetMissionEventsSince returns events with sequence > sinceSeq, up to
// limit rows, ordered by sequence — the catch-up replay query for the
// WebSocket Authority (spec §4.7, §9's "replays all persisted events
// since the requested sequence").
func (q *Queries) GetMissionEventsSince(ctx context.Context, missionID string, sinceSeq, limit int) ([]*MissionEvent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, mission_id, sequence, event_type, payload, created_at
		FROM mission_events
		WHERE mission_id = $1 AND sequence > $2
		ORDER BY sequence ASC
		LIMIT $3`, missionID, sinceSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("querying mission events: %w", err)
	}
	defer rows.Close()

	var out []*MissionEvent
	for rows.Next() {
		var e MissionEvent
		if err := rows.Scan(&e.ID, &e.MissionID, &e.Sequence, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning mission event row: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CountMissionEventsSince reports how many events exist past sinceSeq,
// used to detect catch-up overflow before paying for the full payload scan.
func (q *Queries) CountMissionEventsSince(ctx context.Context, missionID string, sinceSeq int) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mission_events WHERE mission_id = $1 AND sequence > $2`,
		missionID, sinceSeq).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting mission events: %w", err)
	}
	return count, nil
}
