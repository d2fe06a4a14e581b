package supervisor

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/codeready-toolchain/missionctl/internal/agents"
)

// canonicalPlanHash hashes a plan's step names and descriptions after
// sorting by name, so the hash is stable against non-semantic step
// reordering (spec §9: "canonicalise by sorting step keys before
// hashing").
func canonicalPlanHash(plan *agents.Plan) string {
	if plan == nil {
		return ""
	}
	steps := make([]agents.PlanStep, len(plan.Steps))
	copy(steps, plan.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Name < steps[j].Name })

	var sb strings.Builder
	for _, step := range steps {
		sb.WriteString(step.Name)
		sb.WriteByte('\x00')
		sb.WriteString(step.Description)
		sb.WriteByte('\x1e')
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
