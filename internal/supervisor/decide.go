package supervisor

// decide is the Supervisor node's pure decision function: the ten
// ordered rules from spec §4.3, first match wins. It never mutates
// state or performs I/O, matching the redesign flag in spec §9 ("the
// supervisor function is pure over shared state").
func decide(s *SharedState) Node {
	switch {
	case s.LoopDetected && s.Audit == nil:
		return NodeAuditor
	case s.LoopDetected && s.Audit != nil:
		return NodeEnd
	case s.ForceResearch && !s.ResearchPerformed:
		return NodeContextualizer
	case !s.ContextEnriched:
		return NodeContextualizer
	case s.Plan == nil:
		return NodeStrategist
	case s.Design == nil:
		return NodeArchitect
	case s.Execution == nil:
		return NodeOperator
	case s.Audit == nil:
		return NodeAuditor
	case !s.Audit.Approved && s.Iteration < s.MaxIterations && s.Audit.Score < s.ApprovalThreshold:
		return NodeLoopController
	default:
		return NodeEnd
	}
}
