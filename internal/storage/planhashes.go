package storage

import (
	"context"
	"fmt"
)

// InsertPlanHash records the canonical hash of a supervisor iteration's
// emitted plan, compared after each Strategist step to detect repeated
// plans.
func (q *Queries) InsertPlanHash(ctx context.Context, exec Executor, p *PlanHash) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO plan_hashes (id, mission_id, iteration, hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.MissionID, p.Iteration, p.Hash, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting plan hash: %w", err)
	}
	return nil
}

// LastPlanHashes returns the most recent n plan hashes for a mission,
// ordered oldest-first, for consecutive-equal loop detection.
func (q *Queries) LastPlanHashes(ctx context.Context, missionID string, n int) ([]*PlanHash, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, mission_id, iteration, hash, created_at
		FROM plan_hashes
		WHERE mission_id = $1
		ORDER BY iteration DESC
		LIMIT $2`, missionID, n)
	if err != nil {
		return nil, fmt.Errorf("querying plan hashes: %w", err)
	}
	defer rows.Close()

	var out []*PlanHash
	for rows.Next() {
		var p PlanHash
		if err := rows.Scan(&p.ID, &p.MissionID, &p.Iteration, &p.Hash, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning plan hash row: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse to oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
