package supervisor

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/missionctl/internal/agents"
)

// Patch is a non-I/O mutation a node applies to SharedState once it
// completes successfully, keeping the node functions themselves free of
// direct state ownership — grounded on the teacher's factory-dispatched
// Controller.Process idiom (pkg/agent/controller/factory.go), generalised
// from "controller mutates ExecutionContext" to "node returns a Patch the
// graph applies".
type Patch func(*SharedState)

// nodeFunc is the signature every non-terminal, non-Supervisor node
// implements. The supervisor dispatches by Node name through a static
// table (never importing a node's package directly), per the redesign
// flag in spec §9 ("avoid ownership cycles... static transition table").
type nodeFunc func(ctx context.Context, roster agents.Roster, s *SharedState) (Patch, error)

// table builds the static transition table, keyed by node name.
func table() map[Node]nodeFunc {
	return map[Node]nodeFunc{
		NodeContextualizer: contextualizerNode,
		NodeStrategist:     strategistNode,
		NodeArchitect:      architectNode,
		NodeOperator:       operatorNode,
		NodeAuditor:        auditorNode,
		NodeLoopController: loopControllerNode,
	}
}

func contextualizerNode(ctx context.Context, roster agents.Roster, s *SharedState) (Patch, error) {
	enrichment, err := roster.Contextualizer.Enrich(ctx, agents.ContextInput{
		Objective:     s.Objective,
		ForceResearch: s.ForceResearch,
		SharedMemory:  s.SharedMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("contextualizer: %w", err)
	}
	return func(s *SharedState) {
		s.ContextEnriched = true
		s.ResearchPerformed = true
		if enrichment.RefinedObjective != "" {
			s.Objective = enrichment.RefinedObjective
		}
		s.SharedMemory["metadata_filters"] = enrichment.MetadataFilters
		s.SharedMemory["snippets"] = enrichment.Snippets
	}, nil
}

func strategistNode(ctx context.Context, roster agents.Roster, s *SharedState) (Patch, error) {
	plan, err := roster.Strategist.Plan(ctx, agents.PlanInput{
		Objective:    s.Objective,
		Constraints:  s.Constraints,
		SharedMemory: s.SharedMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("strategist: %w", err)
	}
	return func(s *SharedState) {
		s.Plan = plan
	}, nil
}

func architectNode(ctx context.Context, roster agents.Roster, s *SharedState) (Patch, error) {
	design, err := roster.Architect.Design(ctx, agents.DesignInput{
		Objective:    s.Objective,
		Plan:         s.Plan,
		SharedMemory: s.SharedMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("architect: %w", err)
	}
	return func(s *SharedState) {
		s.Design = design
	}, nil
}

func operatorNode(ctx context.Context, roster agents.Roster, s *SharedState) (Patch, error) {
	execution, err := roster.Operator.Execute(ctx, agents.ExecutionInput{
		Objective:    s.Objective,
		Plan:         s.Plan,
		Design:       s.Design,
		SharedMemory: s.SharedMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("operator: %w", err)
	}
	return func(s *SharedState) {
		s.Execution = execution
	}, nil
}

func auditorNode(ctx context.Context, roster agents.Roster, s *SharedState) (Patch, error) {
	audit, err := roster.Auditor.Audit(ctx, agents.AuditInput{
		Objective:    s.Objective,
		Plan:         s.Plan,
		Design:       s.Design,
		Execution:    s.Execution,
		SharedMemory: s.SharedMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("auditor: %w", err)
	}
	return func(s *SharedState) {
		s.Audit = audit
	}, nil
}

// loopControllerNode resets the per-iteration artifacts and seeds shared
// memory with the auditor's feedback, per spec §4.3. It never calls an
// agent, so it cannot fail.
func loopControllerNode(_ context.Context, _ agents.Roster, s *SharedState) (Patch, error) {
	feedback := ""
	if s.Audit != nil {
		feedback = s.Audit.Feedback
	}
	return func(s *SharedState) {
		s.Plan = nil
		s.Design = nil
		s.Execution = nil
		s.Audit = nil
		s.Iteration++
		s.SharedMemory["auditor_feedback"] = feedback
		s.RunID = fmt.Sprintf("%s:%d", s.MissionID, s.Iteration)
	}, nil
}
