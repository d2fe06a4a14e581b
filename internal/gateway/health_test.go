package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProber_MarksServiceHealthyThenUnhealthyAsUpstreamChanges(t *testing.T) {
	healthy := true
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer upstream.Close()

	reg, err := NewRegistry([]Service{{Name: "missions", BaseURL: upstream.URL, HealthPath: "/health"}}, nil)
	require.NoError(t, err)

	prober := NewProber(reg, 20*time.Millisecond, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	prober.Start(ctx)
	defer prober.Stop()

	require.Eventually(t, func() bool { return reg.IsHealthy("missions") }, 2*time.Second, 10*time.Millisecond)

	healthy = false
	require.Eventually(t, func() bool { return !reg.IsHealthy("missions") }, 2*time.Second, 10*time.Millisecond)
}

func TestAggregatedHealthHandler_ReportsSummaryPercentage(t *testing.T) {
	reg, err := NewRegistry([]Service{
		{Name: "missions", BaseURL: "http://missions"},
		{Name: "chat", BaseURL: "http://chat"},
	}, nil)
	require.NoError(t, err)
	reg.SetHealthy("missions", true)
	reg.SetHealthy("chat", false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	AggregatedHealthHandler(reg)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"degraded"`)
	require.Contains(t, rec.Body.String(), `"healthy":1`)
	require.Contains(t, rec.Body.String(), `"total":2`)
}
