package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/missionctl/internal/agents"
	"github.com/codeready-toolchain/missionctl/internal/apperrors"
	"github.com/codeready-toolchain/missionctl/internal/missionstate"
	"github.com/codeready-toolchain/missionctl/internal/storage"
)

// completionTimeout bounds the CompleteMission call made once drive
// returns. That call uses a fresh, un-canceled context rather than the
// run's own ctx: ctx may already be canceled (the mission was
// cancelled mid-run), and a canceled context fails
// storage.Queries.WithTx's BeginTx immediately, leaving the mission
// stuck in "running" forever instead of transitioning to a terminal
// state.
const completionTimeout = 5 * time.Second

// Config holds the policy constants from spec §4.3 and §9's "policy
// constants, not semantics" Open Question resolution
// (internal/config.SupervisorPolicy carries these at the process
// boundary; Supervisor itself takes plain values so it has no config
// package dependency).
type Config struct {
	MaxIterations       int
	HardIterationCap    int
	ApprovalThreshold   float64
	MaxGraphTransitions int
}

// Supervisor runs the cognitive supervisor graph for one mission at a
// time, dispatching through the static transition table and persisting
// every transition via the State Manager.
type Supervisor struct {
	manager *missionstate.Manager
	roster  agents.Roster
	cfg     Config
	locks   *runLocks
	table   map[Node]nodeFunc
	log     *slog.Logger
}

// New constructs a Supervisor.
func New(manager *missionstate.Manager, roster agents.Roster, cfg Config) *Supervisor {
	return &Supervisor{
		manager: manager,
		roster:  roster,
		cfg:     cfg,
		locks:   newRunLocks(),
		table:   table(),
		log:     slog.With("component", "supervisor"),
	}
}

// Run drives the graph to completion for one mission and returns the
// final outcome status (success, partial_success or failed). It is not
// re-entrant per mission: a concurrent call for the same mission ID
// returns an error immediately rather than queuing (spec §4.3:
// "Supervisor is not re-entrant per mission").
func (sup *Supervisor) Run(ctx context.Context, missionID, objective string, forceResearch bool) (storage.MissionStatus, error) {
	release, err := sup.locks.acquire(missionID)
	if err != nil {
		return "", apperrors.Conflict(err.Error())
	}
	defer release()

	if err := sup.manager.UpdateStatus(ctx, missionID, storage.MissionRunning, "supervisor run started"); err != nil {
		return "", err
	}

	runID := fmt.Sprintf("%s:0", missionID)
	state := NewSharedState(missionID, runID, objective, forceResearch,
		sup.cfg.MaxIterations, sup.cfg.HardIterationCap, sup.cfg.ApprovalThreshold)

	if err := sup.emit(ctx, missionID, "RUN_STARTED", map[string]any{"run_id": runID, "iteration": 0}); err != nil {
		sup.log.Warn("failed to emit RUN_STARTED", "mission_id", missionID, "error", err)
	}

	outcome, reason, err := sup.drive(ctx, state)
	if err != nil {
		return "", err
	}

	var result map[string]any
	if state.Audit != nil {
		result = map[string]any{"final_response": state.Audit.FinalResponse, "score": state.Audit.Score}
	}
	completeCtx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()
	if completeErr := sup.manager.CompleteMission(completeCtx, missionID, outcome, result, reason); completeErr != nil {
		return "", completeErr
	}
	return outcome, nil
}

// drive runs the decide/dispatch loop until a terminal node is reached
// or the hard recursion limit trips, returning the mission outcome and
// any failure reason.
func (sup *Supervisor) drive(ctx context.Context, state *SharedState) (storage.MissionStatus, string, error) {
	maxTransitions := sup.cfg.MaxGraphTransitions
	if maxTransitions <= 0 {
		maxTransitions = 100
	}

	for transitions := 0; transitions < maxTransitions; transitions++ {
		node := decide(state)
		if node == NodeEnd {
			return sup.finalOutcome(state), state.LoopReason, nil
		}

		fn, ok := sup.table[node]
		if !ok {
			return "", "", fmt.Errorf("no transition registered for node %s", node)
		}

		entry := TimelineEntry{Node: node, EnteredAt: time.Now()}
		sup.emitPhase(ctx, state, "phase_start", node, "")

		patch, err := fn(ctx, sup.roster, state)
		entry.ExitedAt = time.Now()

		if err != nil {
			entry.Error = err.Error()
			state.Timeline = append(state.Timeline, entry)
			state.recordPhaseError(node, err)
			sup.emitPhase(ctx, state, "phase_error", node, err.Error())

			if node == NodeAuditor {
				return storage.MissionFailed, fmt.Sprintf("auditor failure: %v", err), nil
			}
			// Non-auditor agent failures are recorded; the field the node
			// would have set stays nil, so decide() retries the same node
			// next iteration until the hard recursion limit protects us.
			continue
		}

		patch(state)
		state.Timeline = append(state.Timeline, entry)
		sup.emitPhase(ctx, state, "phase_completed", node, "")

		if node == NodeStrategist {
			if err := sup.recordPlanHash(ctx, state); err != nil {
				sup.log.Warn("failed to record plan hash", "mission_id", state.MissionID, "error", err)
			}
		}
		if node == NodeLoopController {
			if err := sup.emit(ctx, state.MissionID, "loop_start", map[string]any{
				"iteration": state.Iteration,
				"run_id":    state.RunID,
			}); err != nil {
				sup.log.Warn("failed to emit loop_start", "mission_id", state.MissionID, "error", err)
			}
			// RUN_STARTED also fires on each iteration boundary (spec §4.3),
			// bounding the number of distinct runs at max_iterations+1.
			if err := sup.emit(ctx, state.MissionID, "RUN_STARTED", map[string]any{
				"run_id":    state.RunID,
				"iteration": state.Iteration,
			}); err != nil {
				sup.log.Warn("failed to emit RUN_STARTED", "mission_id", state.MissionID, "error", err)
			}
		}
	}

	return "", "", fmt.Errorf("supervisor run for mission %s exceeded hard recursion limit of %d transitions", state.MissionID, maxTransitions)
}

// recordPlanHash computes the new plan's canonical hash, persists it,
// and sets LoopDetected when it matches the immediately preceding hash —
// "two consecutive equal hashes ⇒ loop" (spec §3, §4.3).
func (sup *Supervisor) recordPlanHash(ctx context.Context, state *SharedState) error {
	hash := canonicalPlanHash(state.Plan)
	loopDetected, err := sup.manager.RecordPlanHash(ctx, state.MissionID, state.Iteration, hash)
	if err != nil {
		return err
	}
	state.PlanHashes = append(state.PlanHashes, hash)
	if loopDetected {
		state.LoopDetected = true
		state.LoopReason = "loop_stopped"
	}
	return nil
}

// finalOutcome derives the terminal mission status once the graph
// reaches END, per the failure-handling rules in spec §4.3.
func (sup *Supervisor) finalOutcome(state *SharedState) storage.MissionStatus {
	if state.LoopDetected {
		return storage.MissionFailed
	}
	if state.Audit != nil && state.Audit.Approved {
		return storage.MissionSuccess
	}
	// Reached END without approval: either the iteration cap was hit or
	// the audit was never satisfied. The execution is still usable.
	return storage.MissionPartialSuccess
}

func (sup *Supervisor) emitPhase(ctx context.Context, state *SharedState, eventType string, node Node, errMsg string) {
	payload := map[string]any{
		"run_id": state.RunID,
		"phase":  string(node),
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}
	if err := sup.emit(ctx, state.MissionID, eventType, payload); err != nil {
		sup.log.Warn("failed to emit phase event", "mission_id", state.MissionID, "event_type", eventType, "error", err)
	}
}

func (sup *Supervisor) emit(ctx context.Context, missionID, eventType string, payload map[string]any) error {
	return sup.manager.EmitEvent(ctx, missionID, eventType, payload)
}
