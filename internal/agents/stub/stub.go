// Package stub provides deterministic test doubles for the internal/agents
// roles, grounded on the teacher's mockLLMClient idiom
// (pkg/agent/controller/test_helpers_test.go): Strategist and Auditor
// consume a fixed, ordered list of canned responses and return an error
// once exhausted, while Architect, Operator and Contextualizer return the
// same fixed value on every call, so tests can assert the exact sequence
// of supervisor iterations rather than depend on real LLM behaviour.
package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeready-toolchain/missionctl/internal/agents"
)

// Strategist returns a fixed sequence of plans, one per call.
type Strategist struct {
	mu        sync.Mutex
	Plans     []*agents.Plan
	callCount int
}

func NewStrategist(plans ...*agents.Plan) *Strategist {
	return &Strategist{Plans: plans}
}

func (s *Strategist) Plan(_ context.Context, _ agents.PlanInput) (*agents.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callCount >= len(s.Plans) {
		return nil, fmt.Errorf("stub strategist: no more plans (call %d)", s.callCount+1)
	}
	p := s.Plans[s.callCount]
	s.callCount++
	return p, nil
}

// Architect returns a fixed design regardless of input.
type Architect struct {
	Result *agents.Design
	Err    error
}

func NewArchitect(design *agents.Design) *Architect {
	return &Architect{Result: design}
}

// Design implements agents.Architect.
func (a *Architect) Design(_ context.Context, _ agents.DesignInput) (*agents.Design, error) {
	return a.Result, a.Err
}

// Operator returns a fixed execution result.
type Operator struct {
	Execution *agents.Execution
	Err       error
}

func NewOperator(execution *agents.Execution) *Operator {
	return &Operator{Execution: execution}
}

func (o *Operator) Execute(_ context.Context, _ agents.ExecutionInput) (*agents.Execution, error) {
	return o.Execution, o.Err
}

// Auditor returns a fixed sequence of audits, one per call, so a test can
// model repeated "needs improvement" verdicts followed by approval.
type Auditor struct {
	mu        sync.Mutex
	Audits    []*agents.Audit
	callCount int
}

func NewAuditor(audits ...*agents.Audit) *Auditor {
	return &Auditor{Audits: audits}
}

func (a *Auditor) Audit(_ context.Context, _ agents.AuditInput) (*agents.Audit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.callCount >= len(a.Audits) {
		return nil, fmt.Errorf("stub auditor: no more audits (call %d)", a.callCount+1)
	}
	audit := a.Audits[a.callCount]
	a.callCount++
	return audit, nil
}

// Contextualizer returns a fixed enrichment.
type Contextualizer struct {
	Enrichment *agents.ContextEnrichment
	Err        error
}

func NewContextualizer(enrichment *agents.ContextEnrichment) *Contextualizer {
	return &Contextualizer{Enrichment: enrichment}
}

func (c *Contextualizer) Enrich(_ context.Context, _ agents.ContextInput) (*agents.ContextEnrichment, error) {
	return c.Enrichment, c.Err
}

// Roster builds an agents.Roster from canned stub doubles, the shape
// supervisor tests wire in directly.
func Roster(strategist *Strategist, architect *Architect, operator *Operator, auditor *Auditor, contextualizer *Contextualizer) agents.Roster {
	return agents.Roster{
		Strategist:     strategist,
		Architect:      architect,
		Operator:       operator,
		Auditor:        auditor,
		Contextualizer: contextualizer,
	}
}
