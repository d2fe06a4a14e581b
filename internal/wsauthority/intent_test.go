package wsauthority

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeMissionType(t *testing.T) {
	cases := map[string]string{
		"":                "DEFAULT",
		"chat":            "DEFAULT",
		"mission_complex": "MISSION_COMPLEX",
		"deep_analysis":   "DEEP_ANALYSIS",
		"code_search":     "CODE_SEARCH",
		"something_else":  "SOMETHING_ELSE",
	}
	for raw, want := range cases {
		require.Equal(t, want, NormalizeMissionType(raw), "raw=%q", raw)
	}
}

func TestIsMissionClass(t *testing.T) {
	require.False(t, IsMissionClass("DEFAULT"))
	require.True(t, IsMissionClass("MISSION_COMPLEX"))
	require.True(t, IsMissionClass("CODE_SEARCH"))
}
