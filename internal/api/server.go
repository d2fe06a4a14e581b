// Package api wires the control plane's HTTP+WebSocket surface: the
// Mission HTTP API, the Mission WebSocket stream and the Chat WebSocket
// endpoints, grounded on the teacher's pkg/api.Server — same
// Echo-v5-plus-Set*-wiring shape, generalized from TARSy's
// alert/session/chat domain to missions/tasks/events.
package api

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codeready-toolchain/missionctl/internal/idempotency"
	"github.com/codeready-toolchain/missionctl/internal/missionstate"
	"github.com/codeready-toolchain/missionctl/internal/orchestrator"
	"github.com/codeready-toolchain/missionctl/internal/storage"
	"github.com/codeready-toolchain/missionctl/internal/version"
	"github.com/codeready-toolchain/missionctl/internal/wsauthority"
)

// Server is the control plane's HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	db         *sql.DB
	manager    *missionstate.Manager
	entrypoint *orchestrator.Entrypoint

	missionStream *wsauthority.MissionStreamHandler
	customerChat  *wsauthority.ChatHandler
	adminChat     *wsauthority.ChatHandler
}

// Deps bundles everything NewServer needs to wire routes, grounded on
// the teacher's NewServer(cfg, dbClient, alertService, sessionService,
// workerPool, connManager) constructor-with-positional-collaborators
// shape.
type Deps struct {
	DB             *sql.DB
	Queries        *storage.Queries
	Manager        *missionstate.Manager
	Entrypoint     *orchestrator.Entrypoint
	IdempotencyCfg idempotency.Config
	MissionStream  *wsauthority.MissionStreamHandler
	CustomerChat   *wsauthority.ChatHandler
	AdminChat      *wsauthority.ChatHandler
}

// NewServer creates a new API server with Echo v5 and registers every
// route up front, mirroring the teacher's "wire then setupRoutes" order.
func NewServer(deps Deps) *Server {
	e := echo.New()

	s := &Server{
		echo:          e,
		db:            deps.DB,
		manager:       deps.Manager,
		entrypoint:    deps.Entrypoint,
		missionStream: deps.MissionStream,
		customerChat:  deps.CustomerChat,
		adminChat:     deps.AdminChat,
	}

	e.Use(middleware.BodyLimit(2 * 1024 * 1024))
	e.Use(securityHeaders())
	e.Use(idempotency.Middleware(deps.Queries, deps.IdempotencyCfg))

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/missions", s.startMissionHandler)
	v1.GET("/missions/:id", s.getMissionHandler)
	v1.GET("/missions/:id/events", s.listMissionEventsHandler)
	v1.POST("/missions/:id/cancel", s.cancelMissionHandler)
	v1.GET("/missions/:id/ws", s.missionStreamHandler)

	s.echo.GET("/api/chat/ws", s.customerChatHandler)
	s.echo.GET("/admin/api/chat/ws", s.adminChatHandler)
}

func (s *Server) customerChatHandler(c *echo.Context) error {
	s.customerChat.Serve(c.Response(), c.Request())
	return nil
}

func (s *Server) adminChatHandler(c *echo.Context) error {
	s.adminChat.Serve(c.Response(), c.Request())
	return nil
}

// healthHandler handles GET /health, scoped to this control plane's
// components (database only — no LLM/MCP fields, unlike the teacher's
// richer health payload).
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := storage.Health(reqCtx, s.db)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, &HealthResponse{Status: "unhealthy", Database: dbHealth.Status, Version: version.Full()})
	}
	return c.JSON(http.StatusOK, &HealthResponse{Status: "healthy", Database: dbHealth.Status, Version: version.Full()})
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener,
// used by tests to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
