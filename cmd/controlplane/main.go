// Command controlplane runs the mission control plane: the Orchestrator
// Entry Point, State Manager, outbox drain, event bus bridge, supervisor
// graph and the HTTP+WebSocket API, grounded on the teacher's
// cmd/tarsy/main.go bootstrap shape (flag-configured config dir,
// godotenv load, sequential collaborator construction) generalized with
// signal.NotifyContext-driven graceful shutdown, grounded on the wider
// pack's daemon-entrypoint idiom (zkoranges-go-claw's cmd/goclaw/main.go).
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/missionctl/internal/agents"
	"github.com/codeready-toolchain/missionctl/internal/agents/stub"
	"github.com/codeready-toolchain/missionctl/internal/api"
	"github.com/codeready-toolchain/missionctl/internal/config"
	"github.com/codeready-toolchain/missionctl/internal/eventbus"
	"github.com/codeready-toolchain/missionctl/internal/gateway"
	"github.com/codeready-toolchain/missionctl/internal/idempotency"
	"github.com/codeready-toolchain/missionctl/internal/missionstate"
	"github.com/codeready-toolchain/missionctl/internal/orchestrator"
	"github.com/codeready-toolchain/missionctl/internal/outbox"
	"github.com/codeready-toolchain/missionctl/internal/storage"
	"github.com/codeready-toolchain/missionctl/internal/supervisor"
	"github.com/codeready-toolchain/missionctl/internal/version"
	"github.com/codeready-toolchain/missionctl/internal/wsauthority"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	slog.Info("starting control plane", "version", version.Full())

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	dbClient, err := storage.NewClient(ctx, storage.Config(cfg.Database))
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to database and applied migrations")

	q := storage.NewQueries(dbClient.DB())
	manager := missionstate.New(q)

	bus := eventbus.New(cfg.EventBus.SubscriberQueueDepth)

	bridge := eventbus.NewBridge(storage.DSN(storage.Config(cfg.Database)), bus, cfg.EventBus.ListenTimeout)
	if err := bridge.Start(ctx); err != nil {
		slog.Error("failed to start event bus bridge", "error", err)
		os.Exit(1)
	}
	defer bridge.Stop(ctx)

	worker := outbox.New(q, dbClient.DB(), bus, outbox.Config{
		PollInterval:       cfg.Outbox.PollInterval,
		PollIntervalJitter: cfg.Outbox.PollIntervalJitter,
		BatchSize:          cfg.Outbox.BatchSize,
		MaxRetries:         cfg.Outbox.MaxRetries,
	})
	worker.Start(ctx)
	defer worker.Stop()

	sweeper := outbox.NewRetentionSweeper(q, 24*time.Hour, cfg.Outbox.Retention)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// LLM invocation is out of scope for this control plane (spec §1
	// exclusions); the roster is wired from internal/agents/stub so the
	// supervisor graph runs end to end against deterministic agent
	// behaviour rather than a concrete model integration.
	roster := stub.Roster(
		stub.NewStrategist(&agents.Plan{StrategyName: "direct", Steps: []agents.PlanStep{{Name: "answer", Description: "produce a direct response"}}}),
		stub.NewArchitect(&agents.Design{Data: map[string]any{}}),
		stub.NewOperator(&agents.Execution{Status: "success", Results: []agents.StepResult{{Name: "answer", Status: "success"}}}),
		stub.NewAuditor(&agents.Audit{Approved: true, Score: cfg.Supervisor.ApprovalThreshold + 1, FinalResponse: "mission complete"}),
		stub.NewContextualizer(&agents.ContextEnrichment{RefinedObjective: ""}),
	)

	sup := supervisor.New(manager, roster, supervisor.Config{
		MaxIterations:       cfg.Supervisor.MaxIterations,
		HardIterationCap:    cfg.Supervisor.HardIterationCap,
		ApprovalThreshold:   cfg.Supervisor.ApprovalThreshold,
		MaxGraphTransitions: cfg.Supervisor.MaxGraphTransitions,
	})

	pool := orchestrator.NewDispatchPool(manager, sup, 16)
	defer pool.Stop()
	entrypoint := orchestrator.New(manager, pool)

	codec := wsauthority.NewTokenCodec()
	missionStream := wsauthority.NewMissionStreamHandler(codec, cfg.WSAuth, manager, bus, cfg.EventBus.CatchupLimit)
	customerChat := wsauthority.NewChatHandler(wsauthority.Policy{RouteID: "customer-chat"}, codec, cfg.WSAuth, entrypoint, bus, false)
	adminChat := wsauthority.NewChatHandler(wsauthority.Policy{
		RouteID:          "admin-chat",
		RequiresAdmin:    true,
		ForbiddenDetails: "Admin accounts must use the admin chat endpoint.",
	}, codec, cfg.WSAuth, entrypoint, bus, false)

	apiServer := api.NewServer(api.Deps{
		DB: dbClient.DB(), Queries: q, Manager: manager, Entrypoint: entrypoint,
		IdempotencyCfg: idempotency.Config{},
		MissionStream:  missionStream,
		CustomerChat:   customerChat,
		AdminChat:      adminChat,
	})

	services := make([]gateway.Service, 0, len(cfg.Gateway.Services))
	for _, s := range cfg.Gateway.Services {
		services = append(services, gateway.Service{Name: s.Name, BaseURL: s.BaseURL, HealthPath: s.HealthPath, Timeout: s.Timeout, RetryCount: s.RetryCount})
	}
	routes := make([]gateway.Route, 0, len(cfg.Gateway.Routes))
	for _, r := range cfg.Gateway.Routes {
		routes = append(routes, gateway.Route{PathPrefix: r.PathPrefix, TargetService: r.TargetService, StripPrefix: r.StripPrefix, RequireAuth: r.RequireAuth})
	}

	var gatewayServer *http.Server
	if len(services) > 0 {
		registry, err := gateway.NewRegistry(services, routes)
		if err != nil {
			slog.Error("failed to build gateway registry", "error", err)
			os.Exit(1)
		}
		prober := gateway.NewProber(registry, cfg.Gateway.HealthProbeInterval, cfg.Gateway.HealthProbeTimeout)
		prober.Start(ctx)
		defer prober.Stop()

		router := gateway.NewRouter(registry, cfg.Gateway.ProxyTimeout)
		gatewayServer = &http.Server{Addr: ":8081", Handler: router}
		go func() {
			if err := gatewayServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("gateway server stopped unexpectedly", "error", err)
			}
		}()
		slog.Info("gateway listening", "addr", gatewayServer.Addr, "services", len(services))
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during API server shutdown", "error", err)
		}
		if gatewayServer != nil {
			_ = gatewayServer.Shutdown(shutdownCtx)
		}
	}()

	slog.Info("control plane listening", "addr", cfg.Server.Addr)
	if err := apiServer.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("api server stopped unexpectedly", "error", err)
		os.Exit(1)
	}

	slog.Info("control plane shut down cleanly")
}
