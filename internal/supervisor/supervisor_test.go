package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/missionctl/internal/agents"
	"github.com/codeready-toolchain/missionctl/internal/agents/stub"
	"github.com/codeready-toolchain/missionctl/internal/storage"
)

func fixedDesign() *agents.Design {
	return &agents.Design{Data: map[string]any{"layout": "single-pass"}}
}

func fixedExecution() *agents.Execution {
	return &agents.Execution{
		Status:  "success",
		Results: []agents.StepResult{{Name: "step-1", Status: "success"}},
	}
}

func TestSupervisor_HappyMission_ReachesSuccess(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	mission, err := manager.CreateMission(ctx, "summarise X", nil)
	require.NoError(t, err)

	roster := stub.Roster(
		stub.NewStrategist(&agents.Plan{Steps: []agents.PlanStep{{Name: "gather", Description: "collect sources"}}, StrategyName: "single-pass"}),
		stub.NewArchitect(fixedDesign()),
		stub.NewOperator(fixedExecution()),
		stub.NewAuditor(&agents.Audit{Approved: true, Score: 9.0, Feedback: "looks good"}),
		stub.NewContextualizer(&agents.ContextEnrichment{RefinedObjective: "summarise X"}),
	)

	sup := New(manager, roster, Config{MaxIterations: 3, HardIterationCap: 5, ApprovalThreshold: 7.0, MaxGraphTransitions: 100})

	outcome, err := sup.Run(ctx, mission.ID, "summarise X", false)
	require.NoError(t, err)
	require.Equal(t, storage.MissionSuccess, outcome)

	events, err := manager.GetMissionEvents(ctx, mission.ID, 0, 100)
	require.NoError(t, err)

	var sawRunStarted, sawCompleted bool
	for _, e := range events {
		switch e.EventType {
		case "RUN_STARTED":
			sawRunStarted = true
		case "mission_completed":
			sawCompleted = true
		}
	}
	require.True(t, sawRunStarted)
	require.True(t, sawCompleted)
}

func TestSupervisor_LoopDetection_FailsWithLoopStopped(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	mission, err := manager.CreateMission(ctx, "repeat forever", nil)
	require.NoError(t, err)

	samePlan := &agents.Plan{Steps: []agents.PlanStep{{Name: "loop", Description: "do the same thing"}}}

	roster := stub.Roster(
		stub.NewStrategist(samePlan, samePlan),
		stub.NewArchitect(fixedDesign()),
		stub.NewOperator(fixedExecution()),
		stub.NewAuditor(
			&agents.Audit{Approved: false, Score: 5.5, Feedback: "try again"},
			&agents.Audit{Approved: false, Score: 4.0, Feedback: "loop detected"},
		),
		stub.NewContextualizer(&agents.ContextEnrichment{RefinedObjective: "repeat forever"}),
	)

	sup := New(manager, roster, Config{MaxIterations: 3, HardIterationCap: 5, ApprovalThreshold: 7.0, MaxGraphTransitions: 100})

	outcome, err := sup.Run(ctx, mission.ID, "repeat forever", false)
	require.NoError(t, err)
	require.Equal(t, storage.MissionFailed, outcome)

	got, err := manager.GetMission(ctx, mission.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ErrorMessage)
	require.Equal(t, "loop_stopped", *got.ErrorMessage)

	events, err := manager.GetMissionEvents(ctx, mission.ID, 0, 100)
	require.NoError(t, err)
	runStarted := 0
	for _, e := range events {
		if e.EventType == "RUN_STARTED" {
			runStarted++
		}
	}
	require.Equal(t, 2, runStarted, "one initial run plus the single re-plan iteration boundary before the loop is detected")
}

func TestSupervisor_IterationCapExhausted_PartialSuccess(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	mission, err := manager.CreateMission(ctx, "never quite good enough", nil)
	require.NoError(t, err)

	planA := &agents.Plan{Steps: []agents.PlanStep{{Name: "a", Description: "first attempt"}}}
	planB := &agents.Plan{Steps: []agents.PlanStep{{Name: "b", Description: "second attempt"}}}
	planC := &agents.Plan{Steps: []agents.PlanStep{{Name: "c", Description: "third attempt"}}}

	roster := stub.Roster(
		stub.NewStrategist(planA, planB, planC),
		stub.NewArchitect(fixedDesign()),
		stub.NewOperator(fixedExecution()),
		stub.NewAuditor(
			&agents.Audit{Approved: false, Score: 5.5, Feedback: "needs more work"},
			&agents.Audit{Approved: false, Score: 5.5, Feedback: "needs more work"},
			&agents.Audit{Approved: false, Score: 5.5, Feedback: "needs more work"},
		),
		stub.NewContextualizer(&agents.ContextEnrichment{RefinedObjective: "never quite good enough"}),
	)

	sup := New(manager, roster, Config{MaxIterations: 2, HardIterationCap: 5, ApprovalThreshold: 7.0, MaxGraphTransitions: 100})

	outcome, err := sup.Run(ctx, mission.ID, "never quite good enough", false)
	require.NoError(t, err)
	require.Equal(t, storage.MissionPartialSuccess, outcome)

	events, err := manager.GetMissionEvents(ctx, mission.ID, 0, 100)
	require.NoError(t, err)
	runStarted, loopStarts := 0, 0
	for _, e := range events {
		switch e.EventType {
		case "RUN_STARTED":
			runStarted++
		case "loop_start":
			loopStarts++
		}
	}
	require.Equal(t, 3, runStarted, "one initial run plus two re-plan iteration boundaries")
	require.Equal(t, 2, loopStarts)
}

// cancelingAuditor cancels ctx's owning cancel func just before returning
// its (successful) audit, simulating a mission cancelled the instant
// before drive reaches NodeEnd.
type cancelingAuditor struct {
	audit  *agents.Audit
	cancel context.CancelFunc
}

func (c cancelingAuditor) Audit(context.Context, agents.AuditInput) (*agents.Audit, error) {
	c.cancel()
	return c.audit, nil
}

// TestSupervisor_RunCompletesMissionEvenWhenCtxCancelledMidRun guards
// against Run's final CompleteMission call reusing a context that's
// already cancelled by the time drive returns: the mission must still
// reach a terminal state instead of being stuck in "running" forever.
func TestSupervisor_RunCompletesMissionEvenWhenCtxCancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	manager := newTestManager(t)

	mission, err := manager.CreateMission(ctx, "summarise X", nil)
	require.NoError(t, err)

	roster := agents.Roster{
		Strategist:     stub.NewStrategist(&agents.Plan{Steps: []agents.PlanStep{{Name: "gather"}}}),
		Architect:      stub.NewArchitect(fixedDesign()),
		Operator:       stub.NewOperator(fixedExecution()),
		Auditor:        cancelingAuditor{audit: &agents.Audit{Approved: true, Score: 9.0}, cancel: cancel},
		Contextualizer: stub.NewContextualizer(&agents.ContextEnrichment{RefinedObjective: "summarise X"}),
	}

	sup := New(manager, roster, Config{MaxIterations: 3, HardIterationCap: 5, ApprovalThreshold: 7.0, MaxGraphTransitions: 100})

	outcome, err := sup.Run(ctx, mission.ID, "summarise X", false)
	require.NoError(t, err)
	require.Equal(t, storage.MissionSuccess, outcome)

	final, err := manager.GetMission(context.Background(), mission.ID)
	require.NoError(t, err)
	require.Equal(t, storage.MissionSuccess, final.Status)
}
