package orchestrator

import (
	"context"
	"errors"

	"github.com/codeready-toolchain/missionctl/internal/apperrors"
	"github.com/codeready-toolchain/missionctl/internal/missionstate"
	"github.com/codeready-toolchain/missionctl/internal/storage"
)

// Entrypoint is the single place a mission can be started from (spec
// §4.1). It never runs a mission inline: persistence always goes through
// the State Manager first, and execution is always handed off to the
// dispatch pool, which drives the cognitive supervisor asynchronously.
type Entrypoint struct {
	manager *missionstate.Manager
	pool    *DispatchPool
}

// New builds an Entrypoint wired to manager and pool.
func New(manager *missionstate.Manager, pool *DispatchPool) *Entrypoint {
	return &Entrypoint{manager: manager, pool: pool}
}

// StartMission creates a mission (or returns the cached one for a
// repeated idempotency key, spec §4.1 / §8 scenario 4) and dispatches it
// to the supervisor. The returned mission reflects the row as written —
// "pending" for a fresh mission, whatever status a duplicate key's
// original mission has already reached.
func (e *Entrypoint) StartMission(ctx context.Context, objective, initiator string, requestCtx map[string]any, forceResearch bool, idempotencyKey *string) (*storage.Mission, error) {
	if objective == "" {
		return nil, apperrors.Validation("objective must not be empty")
	}

	if idempotencyKey != nil {
		existing, err := e.manager.GetMissionByIdempotencyKey(ctx, *idempotencyKey)
		if err == nil {
			return existing, nil
		}
		var appErr *apperrors.Error
		if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindNotFound {
			return nil, err
		}
	}

	mission, err := e.manager.CreateMission(ctx, objective, idempotencyKey)
	if err != nil {
		return nil, err
	}

	e.pool.Dispatch(mission.ID, objective, forceResearch)

	return mission, nil
}

// CancelMission requests best-effort cancellation of a mission currently
// running on this node's dispatch pool (spec §5). It does not affect
// missions running on other nodes; the caller is expected to fall back
// to polling mission status if this returns false.
func (e *Entrypoint) CancelMission(missionID string) bool {
	return e.pool.Cancel(missionID)
}
