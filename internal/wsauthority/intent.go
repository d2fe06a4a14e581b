package wsauthority

import "strings"

// NormalizeMissionType maps a client-supplied mission_type string to its
// canonical intent name (spec §6).
func NormalizeMissionType(raw string) string {
	switch raw {
	case "", "chat":
		return "DEFAULT"
	case "mission_complex":
		return "MISSION_COMPLEX"
	case "deep_analysis":
		return "DEEP_ANALYSIS"
	case "code_search":
		return "CODE_SEARCH"
	default:
		return strings.ToUpper(raw)
	}
}

// IsMissionClass reports whether intent should be routed through the
// Orchestrator Entry Point rather than answered directly.
func IsMissionClass(intent string) bool { return intent != "DEFAULT" }
