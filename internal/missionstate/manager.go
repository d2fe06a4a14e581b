// Package missionstate is the sole custodian of mission/task/event
// persistence. Every mutation runs inside one SQL transaction that also
// appends the MissionEvent(s) the mutation produced and the OutboxEntry
// the event bus bridge will later drain, grounded on the teacher's
// EventPublisher.persistAndNotify single-transaction idiom generalised
// from one table (events) to the full domain (missions/tasks/events).
package missionstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/missionctl/internal/apperrors"
	"github.com/codeready-toolchain/missionctl/internal/storage"
	"github.com/google/uuid"
)

// Manager is the State Manager: sole writer of Mission/Task/MissionEvent/
// OutboxEntry, serialising per-mission writes behind a mission-scoped lock.
type Manager struct {
	q     *storage.Queries
	locks *lockRegistry
	log   *slog.Logger
}

// New constructs a Manager over the given query layer.
func New(q *storage.Queries) *Manager {
	return &Manager{
		q:     q,
		locks: newLockRegistry(),
		log:   slog.With("component", "missionstate"),
	}
}

// validTransitions encodes the mission lifecycle DAG: pending -> running ->
// {success, partial_success, failed}, plus pending/running -> cancelled. No
// backward transitions are ever legal.
var validTransitions = map[storage.MissionStatus]map[storage.MissionStatus]bool{
	storage.MissionPending: {
		storage.MissionRunning:   true,
		storage.MissionCancelled: true,
	},
	storage.MissionRunning: {
		storage.MissionSuccess:        true,
		storage.MissionPartialSuccess: true,
		storage.MissionFailed:         true,
		storage.MissionCancelled:      true,
	},
}

func isTerminal(s storage.MissionStatus) bool {
	switch s {
	case storage.MissionSuccess, storage.MissionPartialSuccess, storage.MissionFailed, storage.MissionCancelled:
		return true
	default:
		return false
	}
}

// CreateMission inserts a mission, appends a mission_created MissionEvent
// and an OutboxEntry, all in one transaction.
func (m *Manager) CreateMission(ctx context.Context, goal string, idempotencyKey *string) (*storage.Mission, error) {
	mission := &storage.Mission{
		ID:             uuid.NewString(),
		Goal:           goal,
		Status:         storage.MissionPending,
		IdempotencyKey: idempotencyKey,
		IterationCount: 0,
		CreatedAt:      time.Now(),
	}

	err := m.locks.withMissionLock(mission.ID, func() error {
		return m.q.WithTx(ctx, func(tx *sql.Tx) error {
			if err := m.q.CreateMission(ctx, tx, mission); err != nil {
				return err
			}
			return m.emit(ctx, tx, mission.ID, "mission_created", map[string]any{
				"goal": goal,
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("creating mission: %w", err)
	}
	return mission, nil
}

// GetMission returns a mission by ID, or apperrors.NotFound if absent.
func (m *Manager) GetMission(ctx context.Context, id string) (*storage.Mission, error) {
	mission, err := m.q.GetMission(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, apperrors.NotFound(fmt.Sprintf("mission %s not found", id))
		}
		return nil, apperrors.Internal("fetching mission", err)
	}
	return mission, nil
}

// GetMissionByIdempotencyKey returns the cached mission for a duplicate
// creation request, or apperrors.NotFound if no such mission exists.
func (m *Manager) GetMissionByIdempotencyKey(ctx context.Context, key string) (*storage.Mission, error) {
	mission, err := m.q.GetMissionByIdempotencyKey(ctx, key)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, apperrors.NotFound("no mission for idempotency key")
		}
		return nil, apperrors.Internal("fetching mission by idempotency key", err)
	}
	return mission, nil
}

// UpdateStatus validates the transition against the lifecycle DAG, applies
// it, and emits a status_change event, all under the mission lock.
func (m *Manager) UpdateStatus(ctx context.Context, id string, newStatus storage.MissionStatus, note string) error {
	return m.locks.withMissionLock(id, func() error {
		current, err := m.q.GetMission(ctx, id)
		if err != nil {
			if err == storage.ErrNotFound {
				return apperrors.NotFound(fmt.Sprintf("mission %s not found", id))
			}
			return apperrors.Internal("fetching mission for status update", err)
		}

		if isTerminal(current.Status) {
			return apperrors.Conflict(fmt.Sprintf("mission %s is already in terminal state %s", id, current.Status))
		}
		if !validTransitions[current.Status][newStatus] {
			return apperrors.Validation(fmt.Sprintf("illegal transition %s -> %s", current.Status, newStatus))
		}

		return m.q.WithTx(ctx, func(tx *sql.Tx) error {
			var completedAt any
			if isTerminal(newStatus) {
				completedAt = time.Now()
			}
			if err := m.q.UpdateMissionStatus(ctx, tx, id, newStatus, nil, nil, completedAt); err != nil {
				return err
			}
			if newStatus == storage.MissionRunning {
				if err := m.q.MarkMissionStarted(ctx, tx, id, time.Now()); err != nil {
					return err
				}
			}
			return m.emit(ctx, tx, id, "status_change", map[string]any{
				"from": current.Status,
				"to":   newStatus,
				"note": note,
			})
		})
	})
}

// AppendTaskResult records a task's terminal outcome and emits a
// task_completed event.
func (m *Manager) AppendTaskResult(ctx context.Context, missionID string, ordinal int, status storage.TaskStatus, result any, taskErr *string) error {
	return m.locks.withMissionLock(missionID, func() error {
		return m.q.WithTx(ctx, func(tx *sql.Tx) error {
			rows, err := m.q.ListTasksByMission(ctx, missionID)
			if err != nil {
				return err
			}
			var taskID string
			for _, t := range rows {
				if t.Ordinal == ordinal {
					taskID = t.ID
					break
				}
			}
			if taskID == "" {
				return apperrors.NotFound(fmt.Sprintf("task ordinal %d not found for mission %s", ordinal, missionID))
			}

			payload, err := json.Marshal(result)
			if err != nil {
				return apperrors.Internal("marshaling task result", err)
			}
			if err := m.q.CompleteTask(ctx, tx, taskID, status, payload, taskErr, time.Now()); err != nil {
				return err
			}
			return m.emit(ctx, tx, missionID, "task_completed", map[string]any{
				"ordinal": ordinal,
				"status":  status,
			})
		})
	})
}

// CreateTask inserts the next task in a mission's sequence.
func (m *Manager) CreateTask(ctx context.Context, missionID, node string, input any) (*storage.Task, error) {
	var task *storage.Task
	err := m.locks.withMissionLock(missionID, func() error {
		return m.q.WithTx(ctx, func(tx *sql.Tx) error {
			ordinal, err := m.q.NextOrdinal(ctx, tx, missionID)
			if err != nil {
				return err
			}
			payload, err := json.Marshal(input)
			if err != nil {
				return apperrors.Internal("marshaling task input", err)
			}
			task = &storage.Task{
				ID:        uuid.NewString(),
				MissionID: missionID,
				Ordinal:   ordinal,
				Node:      node,
				Status:    storage.TaskPending,
				Input:     payload,
				CreatedAt: time.Now(),
			}
			return m.q.CreateTask(ctx, tx, task)
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CompleteMission applies the terminal transition and emits
// mission_completed (success/partial_success) or mission_failed.
func (m *Manager) CompleteMission(ctx context.Context, id string, outcome storage.MissionStatus, result any, reason string) error {
	if !isTerminal(outcome) {
		return apperrors.Validation(fmt.Sprintf("%s is not a terminal outcome", outcome))
	}

	return m.locks.withMissionLock(id, func() error {
		current, err := m.q.GetMission(ctx, id)
		if err != nil {
			if err == storage.ErrNotFound {
				return apperrors.NotFound(fmt.Sprintf("mission %s not found", id))
			}
			return apperrors.Internal("fetching mission for completion", err)
		}
		if isTerminal(current.Status) {
			return apperrors.Conflict(fmt.Sprintf("mission %s is already in terminal state %s", id, current.Status))
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return apperrors.Internal("marshaling mission result", err)
		}

		eventType := "mission_completed"
		var errMsg *string
		if outcome == storage.MissionFailed {
			eventType = "mission_failed"
			if reason != "" {
				errMsg = &reason
			}
		}

		return m.q.WithTx(ctx, func(tx *sql.Tx) error {
			if err := m.q.UpdateMissionStatus(ctx, tx, id, outcome, payload, errMsg, time.Now()); err != nil {
				return err
			}
			return m.emit(ctx, tx, id, eventType, map[string]any{
				"outcome": outcome,
				"reason":  reason,
			})
		})
	})
}

// GetMissionEvents returns events with sequence > sinceSeq, used for WS
// catch-up replay. Sequence is monotonic and strictly increasing per
// mission.
func (m *Manager) GetMissionEvents(ctx context.Context, id string, sinceSeq, limit int) ([]*storage.MissionEvent, error) {
	events, err := m.q.GetMissionEventsSince(ctx, id, sinceSeq, limit)
	if err != nil {
		return nil, apperrors.Internal("fetching mission events", err)
	}
	return events, nil
}

// CountMissionEventsSince reports how many events are pending replay past
// sinceSeq, used by the WS Authority to decide between a full replay and
// a catch-up overflow envelope.
func (m *Manager) CountMissionEventsSince(ctx context.Context, id string, sinceSeq int) (int, error) {
	count, err := m.q.CountMissionEventsSince(ctx, id, sinceSeq)
	if err != nil {
		return 0, apperrors.Internal("counting mission events", err)
	}
	return count, nil
}

// RecordPlanHash appends iteration's canonical plan hash and reports
// whether it equals the immediately preceding hash — two consecutive
// equal hashes is the supervisor's loop-detection signal (spec §4.3).
func (m *Manager) RecordPlanHash(ctx context.Context, missionID string, iteration int, hash string) (loopDetected bool, err error) {
	err = m.locks.withMissionLock(missionID, func() error {
		return m.q.WithTx(ctx, func(tx *sql.Tx) error {
			prev, err := m.q.LastPlanHashes(ctx, missionID, 1)
			if err != nil {
				return apperrors.Internal("fetching previous plan hash", err)
			}
			if len(prev) == 1 && prev[0].Hash == hash {
				loopDetected = true
			}
			return m.q.InsertPlanHash(ctx, tx, &storage.PlanHash{
				ID:        uuid.NewString(),
				MissionID: missionID,
				Iteration: iteration,
				Hash:      hash,
				CreatedAt: time.Now(),
			})
		})
	})
	return loopDetected, err
}

// EmitEvent appends an arbitrary named MissionEvent (and its paired
// OutboxEntry), for callers outside this package that need to record
// domain events the State Manager itself didn't produce — the
// supervisor's phase_start/phase_completed/phase_error/loop_start/
// RUN_STARTED events (spec §4.3).
func (m *Manager) EmitEvent(ctx context.Context, missionID, eventType string, payload map[string]any) error {
	return m.locks.withMissionLock(missionID, func() error {
		return m.q.WithTx(ctx, func(tx *sql.Tx) error {
			return m.emit(ctx, tx, missionID, eventType, payload)
		})
	})
}

// emit appends a MissionEvent and its paired OutboxEntry in the caller's
// transaction — the two always travel together so the outbox drain and
// the persisted event stream never diverge.
func (m *Manager) emit(ctx context.Context, tx *sql.Tx, missionID, eventType string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Internal("marshaling event payload", err)
	}

	event := &storage.MissionEvent{
		ID:        uuid.NewString(),
		MissionID: missionID,
		EventType: eventType,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	if err := m.q.AppendMissionEvent(ctx, tx, event); err != nil {
		return err
	}

	envelope, err := json.Marshal(map[string]any{
		"mission_id": missionID,
		"sequence":   event.Sequence,
		"event_type": eventType,
		"payload":    payload,
	})
	if err != nil {
		return apperrors.Internal("marshaling outbox payload", err)
	}

	entry := &storage.OutboxEntry{
		ID:        uuid.NewString(),
		MissionID: missionID,
		Topic:     "mission." + missionID,
		Payload:   envelope,
		CreatedAt: time.Now(),
	}
	if err := m.q.InsertOutboxEntry(ctx, tx, entry); err != nil {
		return err
	}

	m.log.Debug("mission event emitted", "mission_id", missionID, "event_type", eventType, "sequence", event.Sequence)
	return nil
}
