package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/missionctl/internal/agents"
	"github.com/codeready-toolchain/missionctl/internal/agents/stub"
	"github.com/codeready-toolchain/missionctl/internal/missionstate"
	"github.com/codeready-toolchain/missionctl/internal/storage"
	"github.com/codeready-toolchain/missionctl/internal/supervisor"
)

func newTestEntrypoint(t *testing.T, manager *missionstate.Manager) *Entrypoint {
	t.Helper()
	roster := stub.Roster(
		stub.NewStrategist(&agents.Plan{Steps: []agents.PlanStep{{Name: "gather", Description: "collect sources"}}}),
		stub.NewArchitect(&agents.Design{Data: map[string]any{"layout": "single-pass"}}),
		stub.NewOperator(&agents.Execution{Status: "success", Results: []agents.StepResult{{Name: "gather", Status: "success"}}}),
		stub.NewAuditor(&agents.Audit{Approved: true, Score: 9.0, Feedback: "looks good"}),
		stub.NewContextualizer(&agents.ContextEnrichment{RefinedObjective: "summarise X"}),
	)
	sup := supervisor.New(manager, roster, supervisor.Config{
		MaxIterations: 3, HardIterationCap: 5, ApprovalThreshold: 7.0, MaxGraphTransitions: 100,
	})
	pool := NewDispatchPool(manager, sup, 2)
	t.Cleanup(pool.Stop)
	return New(manager, pool)
}

func waitForTerminal(t *testing.T, manager *missionstate.Manager, missionID string) *storage.Mission {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		m, err := manager.GetMission(context.Background(), missionID)
		require.NoError(t, err)
		switch m.Status {
		case storage.MissionSuccess, storage.MissionPartialSuccess, storage.MissionFailed, storage.MissionCancelled:
			return m
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("mission %s did not reach a terminal state in time", missionID)
	return nil
}

func TestEntrypoint_StartMission_DispatchesAndReachesSuccess(t *testing.T) {
	manager := newTestManager(t)
	entry := newTestEntrypoint(t, manager)

	mission, err := entry.StartMission(context.Background(), "summarise X", "user-1", nil, false, nil)
	require.NoError(t, err)
	require.Equal(t, storage.MissionPending, mission.Status)

	final := waitForTerminal(t, manager, mission.ID)
	require.Equal(t, storage.MissionSuccess, final.Status)
}

func TestEntrypoint_StartMission_DuplicateIdempotencyKeyReturnsCachedMission(t *testing.T) {
	manager := newTestManager(t)
	entry := newTestEntrypoint(t, manager)

	key := "idem-key-1"
	first, err := entry.StartMission(context.Background(), "summarise X", "user-1", nil, false, &key)
	require.NoError(t, err)

	second, err := entry.StartMission(context.Background(), "a completely different objective", "user-2", nil, false, &key)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.Goal, second.Goal)

	waitForTerminal(t, manager, first.ID)
}

func TestEntrypoint_StartMission_RejectsEmptyObjective(t *testing.T) {
	manager := newTestManager(t)
	entry := newTestEntrypoint(t, manager)

	_, err := entry.StartMission(context.Background(), "", "user-1", nil, false, nil)
	require.Error(t, err)
}
