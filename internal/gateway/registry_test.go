package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_MatchPicksLongestPrefix(t *testing.T) {
	reg, err := NewRegistry(
		[]Service{{Name: "orchestrator", BaseURL: "http://orch"}, {Name: "missions", BaseURL: "http://missions"}},
		[]Route{
			{PathPrefix: "/", TargetService: "orchestrator"},
			{PathPrefix: "/missions", TargetService: "missions"},
		},
	)
	require.NoError(t, err)

	route, ok := reg.Match("/missions/123")
	require.True(t, ok)
	require.Equal(t, "missions", route.TargetService)

	route, ok = reg.Match("/unrelated")
	require.True(t, ok)
	require.Equal(t, "orchestrator", route.TargetService)
}

func TestRegistry_RejectsRouteToUnknownService(t *testing.T) {
	_, err := NewRegistry(
		[]Service{{Name: "missions", BaseURL: "http://missions"}},
		[]Route{{PathPrefix: "/gone", TargetService: "ghost"}},
	)
	require.Error(t, err)
}

func TestRegistry_HealthSnapshotReflectsSetHealthy(t *testing.T) {
	reg, err := NewRegistry([]Service{{Name: "missions", BaseURL: "http://missions"}}, nil)
	require.NoError(t, err)

	require.False(t, reg.IsHealthy("missions"), "expected initial health to be false before any probe")

	reg.SetHealthy("missions", true)
	snap := reg.HealthSnapshot()
	require.True(t, snap["missions"])
}
