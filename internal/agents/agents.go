// Package agents defines the contract the cognitive supervisor graph
// depends on (spec §4.4): five roles, each a one-shot function over a
// narrow input view that returns its partial contribution to the shared
// state. LLM invocation, prompt engineering and tool dispatch are out of
// scope — callers (internal/supervisor) see only these interfaces, never
// a concrete implementation, mirroring the teacher's
// agent.ControllerFactory indirection (pkg/agent/controller/factory.go)
// that lets the graph dispatch by role without importing a concrete
// controller type.
package agents

import "context"

// PlanStep is one step of a Strategist-produced plan.
type PlanStep struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ToolHint    string `json:"tool_hint,omitempty"`
}

// Plan is the Strategist's output.
type Plan struct {
	Steps        []PlanStep `json:"steps"`
	StrategyName string     `json:"strategy_name"`
	Reasoning    string     `json:"reasoning"`
}

// Design is the Architect's output. Its shape is opaque to the
// supervisor graph — it is carried as structured JSON and interpreted
// only by the Operator.
type Design struct {
	Data map[string]any `json:"data"`
}

// StepResult is one Operator step outcome.
type StepResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // success | partial_failure | failure
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Execution is the Operator's output.
type Execution struct {
	Status  string       `json:"status"` // success | partial_failure | failure
	Results []StepResult `json:"results"`
}

// Audit is the Auditor's output.
type Audit struct {
	Approved      bool    `json:"approved"`
	Score         float64 `json:"score"`
	Feedback      string  `json:"feedback"`
	FinalResponse string  `json:"final_response,omitempty"`
}

// ContextEnrichment is the Contextualizer's output.
type ContextEnrichment struct {
	RefinedObjective string            `json:"refined_objective"`
	MetadataFilters  map[string]string `json:"metadata_filters,omitempty"`
	Snippets         []string          `json:"snippets,omitempty"`
}

// PlanInput is the Strategist's view of shared state.
type PlanInput struct {
	Objective    string
	Constraints  []string
	SharedMemory map[string]any
}

// DesignInput is the Architect's view of shared state.
type DesignInput struct {
	Objective    string
	Plan         *Plan
	SharedMemory map[string]any
}

// ExecutionInput is the Operator's view of shared state.
type ExecutionInput struct {
	Objective    string
	Plan         *Plan
	Design       *Design
	SharedMemory map[string]any
}

// AuditInput is the Auditor's view of shared state.
type AuditInput struct {
	Objective    string
	Plan         *Plan
	Design       *Design
	Execution    *Execution
	SharedMemory map[string]any
}

// ContextInput is the Contextualizer's view of shared state.
type ContextInput struct {
	Objective     string
	ForceResearch bool
	SharedMemory  map[string]any
}

// Strategist produces a plan from the objective and constraints.
type Strategist interface {
	Plan(ctx context.Context, in PlanInput) (*Plan, error)
}

// Architect produces a design from an approved plan.
type Architect interface {
	Design(ctx context.Context, in DesignInput) (*Design, error)
}

// Operator executes the design and reports per-step outcomes.
type Operator interface {
	Execute(ctx context.Context, in ExecutionInput) (*Execution, error)
}

// Auditor reviews an execution and decides whether it is acceptable.
type Auditor interface {
	Audit(ctx context.Context, in AuditInput) (*Audit, error)
}

// Contextualizer enriches the objective with retrieved context before
// planning begins.
type Contextualizer interface {
	Enrich(ctx context.Context, in ContextInput) (*ContextEnrichment, error)
}

// Roster bundles one implementation of each role, the unit the
// supervisor's static transition table dispatches against.
type Roster struct {
	Strategist     Strategist
	Architect      Architect
	Operator       Operator
	Auditor        Auditor
	Contextualizer Contextualizer
}
