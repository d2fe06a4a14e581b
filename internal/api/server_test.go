package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/missionctl/internal/agents"
	"github.com/codeready-toolchain/missionctl/internal/agents/stub"
	"github.com/codeready-toolchain/missionctl/internal/config"
	"github.com/codeready-toolchain/missionctl/internal/eventbus"
	"github.com/codeready-toolchain/missionctl/internal/idempotency"
	"github.com/codeready-toolchain/missionctl/internal/missionstate"
	"github.com/codeready-toolchain/missionctl/internal/orchestrator"
	"github.com/codeready-toolchain/missionctl/internal/outbox"
	"github.com/codeready-toolchain/missionctl/internal/storage"
	"github.com/codeready-toolchain/missionctl/internal/supervisor"
	"github.com/codeready-toolchain/missionctl/internal/wsauthority"
)

// newTestServer wires a full Server instance the same way
// cmd/controlplane's main does, against a real Postgres testcontainer.
func newTestServer(t *testing.T) (*Server, *missionstate.Manager) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("missionctl_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := storage.NewClient(ctx, storage.Config{
		Host: host, Port: port.Int(), User: "test", Password: "test", Database: "missionctl_test",
		SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	q := storage.NewQueries(client.DB())
	manager := missionstate.New(q)
	bus := eventbus.New(256)

	worker := outbox.New(q, client.DB(), bus, outbox.Config{PollInterval: 20 * time.Millisecond, BatchSize: 10, MaxRetries: 3})
	worker.Start(ctx)
	t.Cleanup(worker.Stop)

	roster := stub.Roster(
		stub.NewStrategist(&agents.Plan{StrategyName: "direct", Steps: []agents.PlanStep{{Name: "answer"}}}),
		stub.NewArchitect(&agents.Design{Data: map[string]any{}}),
		stub.NewOperator(&agents.Execution{Status: "success", Results: []agents.StepResult{{Name: "answer", Status: "success"}}}),
		stub.NewAuditor(&agents.Audit{Approved: true, Score: 9, FinalResponse: "done"}),
		stub.NewContextualizer(&agents.ContextEnrichment{RefinedObjective: "test"}),
	)
	sup := supervisor.New(manager, roster, supervisor.Config{MaxIterations: 3, HardIterationCap: 5, ApprovalThreshold: 7})
	pool := orchestrator.NewDispatchPool(manager, sup, 4)
	t.Cleanup(pool.Stop)
	entrypoint := orchestrator.New(manager, pool)

	codec := wsauthority.NewTokenCodec()
	missionStream := wsauthority.NewMissionStreamHandler(codec, config.WSAuthConfig{Environment: "development"}, manager, bus, 200)
	customerChat := wsauthority.NewChatHandler(wsauthority.Policy{RouteID: "customer-chat"}, codec, config.WSAuthConfig{Environment: "development"}, entrypoint, bus, false)
	adminChat := wsauthority.NewChatHandler(wsauthority.Policy{RouteID: "admin-chat", RequiresAdmin: true}, codec, config.WSAuthConfig{Environment: "development"}, entrypoint, bus, false)

	srv := NewServer(Deps{
		DB: client.DB(), Queries: q, Manager: manager, Entrypoint: entrypoint,
		IdempotencyCfg: idempotency.Config{},
		MissionStream:  missionStream, CustomerChat: customerChat, AdminChat: adminChat,
	})
	return srv, manager
}

func TestServer_StartMissionThenGetReturnsAcceptedThenOk(t *testing.T) {
	srv, _ := newTestServer(t)
	httpSrv := httptest.NewServer(srv.echo)
	defer httpSrv.Close()

	body, _ := json.Marshal(StartMissionRequest{Objective: "find the root cause"})
	resp, err := http.Post(httpSrv.URL+"/api/v1/missions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created MissionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)

	getResp, err := http.Get(httpSrv.URL + "/api/v1/missions/" + created.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestServer_GetUnknownMissionReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	httpSrv := httptest.NewServer(srv.echo)
	defer httpSrv.Close()

	resp, err := http.Get(httpSrv.URL + "/api/v1/missions/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_StartMissionEmptyObjectiveReturns400(t *testing.T) {
	srv, _ := newTestServer(t)
	httpSrv := httptest.NewServer(srv.echo)
	defer httpSrv.Close()

	body, _ := json.Marshal(StartMissionRequest{Objective: ""})
	resp, err := http.Post(httpSrv.URL+"/api/v1/missions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_RepeatedIdempotencyKeyReturnsSameMission(t *testing.T) {
	srv, _ := newTestServer(t)
	httpSrv := httptest.NewServer(srv.echo)
	defer httpSrv.Close()

	body, _ := json.Marshal(StartMissionRequest{Objective: "dedup me"})
	req1, _ := http.NewRequest(http.MethodPost, httpSrv.URL+"/api/v1/missions", bytes.NewReader(body))
	req1.Header.Set("Content-Type", "application/json")
	req1.Header.Set("Idempotency-Key", "dup-1")
	resp1, err := http.DefaultClient.Do(req1)
	require.NoError(t, err)
	defer resp1.Body.Close()
	var first MissionResponse
	require.NoError(t, json.NewDecoder(resp1.Body).Decode(&first))

	req2, _ := http.NewRequest(http.MethodPost, httpSrv.URL+"/api/v1/missions", bytes.NewReader(body))
	req2.Header.Set("Content-Type", "application/json")
	req2.Header.Set("Idempotency-Key", "dup-1")
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, resp1.StatusCode, resp2.StatusCode)

	bodyBytes := new(bytes.Buffer)
	_, _ = bodyBytes.ReadFrom(resp2.Body)
	require.True(t, strings.Contains(bodyBytes.String(), first.ID))
}

func TestServer_HealthEndpointReportsHealthy(t *testing.T) {
	srv, _ := newTestServer(t)
	httpSrv := httptest.NewServer(srv.echo)
	defer httpSrv.Close()

	resp, err := http.Get(httpSrv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
