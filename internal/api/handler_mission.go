package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// startMissionHandler handles POST /api/v1/missions (spec §6), grounded
// on the teacher's submitAlertHandler bind-validate-call-respond shape
// (pkg/api/handler_alert.go).
func (s *Server) startMissionHandler(c *echo.Context) error {
	var req StartMissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var idempotencyKey *string
	if key := c.Request().Header.Get("Idempotency-Key"); key != "" {
		idempotencyKey = &key
	}

	mission, err := s.entrypoint.StartMission(c.Request().Context(), req.Objective, extractInitiator(c), req.RequestCtx, req.ForceResearch, idempotencyKey)
	if err != nil {
		return mapDomainError(err)
	}

	return c.JSON(http.StatusAccepted, newMissionResponse(mission))
}

// getMissionHandler handles GET /api/v1/missions/:id.
func (s *Server) getMissionHandler(c *echo.Context) error {
	mission, err := s.manager.GetMission(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, newMissionResponse(mission))
}

// listMissionEventsHandler handles GET /api/v1/missions/:id/events,
// supporting an optional ?since=<sequence> query parameter for
// incremental polling by clients that aren't using the WebSocket.
func (s *Server) listMissionEventsHandler(c *echo.Context) error {
	sinceSeq := 0
	if raw := c.QueryParam("since"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be an integer sequence number")
		}
		sinceSeq = n
	}

	events, err := s.manager.GetMissionEvents(c.Request().Context(), c.Param("id"), sinceSeq, 500)
	if err != nil {
		return mapDomainError(err)
	}

	out := make([]MissionEventResponse, 0, len(events))
	for _, e := range events {
		var payload map[string]any
		_ = json.Unmarshal(e.Payload, &payload)
		out = append(out, MissionEventResponse{
			Sequence:  e.Sequence,
			EventType: e.EventType,
			Payload:   payload,
			CreatedAt: e.CreatedAt.Format(timeLayout),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// cancelMissionHandler handles POST /api/v1/missions/:id/cancel.
func (s *Server) cancelMissionHandler(c *echo.Context) error {
	if !s.entrypoint.CancelMission(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "mission is not running on this node")
	}
	return c.NoContent(http.StatusAccepted)
}

// missionStreamHandler handles GET /api/v1/missions/:id/ws, delegating
// to the WebSocket Authority's mission-streaming handler once the HTTP
// connection has been upgraded (grounded on the teacher's thin
// wsHandler delegate, pkg/api/handler_ws.go).
func (s *Server) missionStreamHandler(c *echo.Context) error {
	s.missionStream.Serve(c.Response(), c.Request(), c.Param("id"))
	return nil
}

// extractInitiator reads the caller identity set by upstream auth, or
// "anonymous" when none is present — mirrors the teacher's
// extractAuthor(c) fallback in pkg/api/handler_alert.go.
func extractInitiator(c *echo.Context) string {
	if v := c.Request().Header.Get("X-MissionCtl-Initiator"); v != "" {
		return v
	}
	return "anonymous"
}
