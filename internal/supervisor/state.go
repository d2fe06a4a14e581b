// Package supervisor implements the cognitive supervisor: a
// state-machine graph routing between agent roles with bounded
// re-planning, grounded on the teacher's config.SubAgentRegistry +
// agent.Agent factory indirection (pkg/agent/controller/factory.go) for
// the node-dispatch-by-name idiom, and pkg/agent/controller/timeline.go
// for the append-only audit trail.
package supervisor

import (
	"time"

	"github.com/codeready-toolchain/missionctl/internal/agents"
)

// Node names the seven graph nodes plus the terminal sentinel.
type Node string

const (
	NodeSupervisor     Node = "Supervisor"
	NodeContextualizer Node = "Contextualizer"
	NodeStrategist     Node = "Strategist"
	NodeArchitect      Node = "Architect"
	NodeOperator       Node = "Operator"
	NodeAuditor        Node = "Auditor"
	NodeLoopController Node = "LoopController"
	NodeEnd            Node = "END"
)

// TimelineEntry records one node visit, grounded on the teacher's
// TimelineEvent entity (ent/schema/timelineevent.go) and
// pkg/agent/controller/timeline.go's append-only event idiom.
type TimelineEntry struct {
	Node      Node
	EnteredAt time.Time
	ExitedAt  time.Time
	Error     string
}

// SharedState is carried through every node invocation of one supervisor
// run, per spec §4.3.
type SharedState struct {
	MissionID string
	RunID     string

	Objective     string
	RequestCtx    map[string]any
	Constraints   []string
	Priority      string
	ForceResearch bool

	SharedMemory map[string]any

	ResearchPerformed bool
	ContextEnriched   bool

	Plan      *agents.Plan
	Design    *agents.Design
	Execution *agents.Execution
	Audit     *agents.Audit

	Iteration         int
	MaxIterations     int
	HardIterationCap  int
	ApprovalThreshold float64

	PlanHashes   []string
	LoopDetected bool
	LoopReason   string

	Timeline []TimelineEntry
}

// NewSharedState constructs the initial state for a fresh supervisor run.
func NewSharedState(missionID, runID, objective string, forceResearch bool, maxIterations, hardCap int, approvalThreshold float64) *SharedState {
	return &SharedState{
		MissionID:         missionID,
		RunID:             runID,
		Objective:         objective,
		ForceResearch:     forceResearch,
		SharedMemory:      make(map[string]any),
		MaxIterations:     maxIterations,
		HardIterationCap:  hardCap,
		ApprovalThreshold: approvalThreshold,
	}
}

// recordPhaseError stashes an agent failure in shared memory so the
// supervisor can continue policy evaluation rather than propagate it
// (spec §7: "Agent errors are captured within the graph ... recorded as
// phase_error events").
func (s *SharedState) recordPhaseError(node Node, err error) {
	key := "last_error_" + string(node)
	s.SharedMemory[key] = err.Error()
}
