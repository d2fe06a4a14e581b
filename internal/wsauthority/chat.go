package wsauthority

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/codeready-toolchain/missionctl/internal/apperrors"
	"github.com/codeready-toolchain/missionctl/internal/config"
	"github.com/codeready-toolchain/missionctl/internal/eventbus"
	"github.com/codeready-toolchain/missionctl/internal/storage"
)

// MissionStarter is the subset of the Orchestrator Entry Point the chat
// handler needs, kept as an interface so tests can substitute a fake
// rather than standing up the whole supervisor graph.
type MissionStarter interface {
	StartMission(ctx context.Context, objective, initiator string, requestCtx map[string]any, forceResearch bool, idempotencyKey *string) (*storage.Mission, error)
}

// ChatRequest is the client frame for both chat endpoints (spec §6).
type ChatRequest struct {
	Question       string         `json:"question"`
	ConversationID string         `json:"conversation_id,omitempty"`
	MissionType    string         `json:"mission_type,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ChatHandler serves the customer (`/api/chat/ws`) and admin
// (`/admin/api/chat/ws`) chat endpoints. Mission-class intents are
// handed to the Orchestrator Entry Point and their lifecycle events
// relayed through; the `DEFAULT` intent has no direct-answer path in
// this system (LLM invocation is consumed as given, spec Non-goals) and
// always falls back immediately.
type ChatHandler struct {
	Policy  Policy
	Auth    Authenticator
	Config  config.WSAuthConfig
	Starter MissionStarter
	Bus     *eventbus.Bus
	// LegacyErrorEnvelope rewrites assistant_error envelopes to the
	// legacy {type:"error"} shape for UI compatibility on the admin
	// route (spec §4.7 step 3).
	LegacyErrorEnvelope bool

	log *slog.Logger
}

// NewChatHandler constructs a ChatHandler for one route.
func NewChatHandler(policy Policy, auth Authenticator, cfg config.WSAuthConfig, starter MissionStarter, bus *eventbus.Bus, legacyErrorEnvelope bool) *ChatHandler {
	return &ChatHandler{
		Policy:              policy,
		Auth:                auth,
		Config:              cfg,
		Starter:             starter,
		Bus:                 bus,
		LegacyErrorEnvelope: legacyErrorEnvelope,
		log:                 slog.With("component", "wsauthority.chat", "route", policy.RouteID),
	}
}

// Serve drives one chat connection: handshake, then one request/response
// cycle per client frame until disconnect.
func (h *ChatHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, identity, err := Accept(w, r, h.Auth, h.Policy, h.Config)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	ctx := r.Context()

	for {
		var req ChatRequest
		if err := readJSON(ctx, conn, &req); err != nil {
			return
		}
		h.handleRequest(ctx, conn, identity, req)
	}
}

func (h *ChatHandler) handleRequest(ctx context.Context, conn *websocket.Conn, identity Identity, req ChatRequest) {
	intent := NormalizeMissionType(req.MissionType)

	if !IsMissionClass(intent) {
		h.send(ctx, conn, Envelope{Type: "assistant_fallback", Payload: map[string]any{
			"message": "no direct response path is configured for this request",
		}})
		return
	}

	mission, err := h.Starter.StartMission(ctx, req.Question, identity.Subject, map[string]any{
		"intent":          intent,
		"conversation_id": req.ConversationID,
		"metadata":        req.Metadata,
	}, false, nil)
	if err != nil {
		h.send(ctx, conn, Envelope{Type: "assistant_error", Payload: map[string]any{
			"status_code": apperrors.KindOf(err).HTTPStatus(),
			"details":     err.Error(),
		}})
		return
	}

	h.send(ctx, conn, Envelope{Type: "status", Payload: map[string]any{"mission_id": mission.ID, "status": mission.Status}})
	if req.ConversationID != "" {
		h.send(ctx, conn, Envelope{Type: "conversation_init", Payload: map[string]any{"conversation_id": req.ConversationID}})
	}

	h.relayMission(ctx, conn, mission.ID)
}

// relayMission subscribes to the mission's topic and forwards every
// event as a `mission_event` envelope until a terminal event arrives,
// falling back to `assistant_fallback` if nothing content-bearing was
// ever relayed (spec §4.7 step 4).
func (h *ChatHandler) relayMission(ctx context.Context, conn *websocket.Conn, missionID string) {
	sub := h.Bus.Subscribe("mission." + missionID)
	defer h.Bus.Unsubscribe(sub)

	sawContent := false
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			env, ok := parseOutboxEnvelope(evt.Payload)
			if !ok {
				continue
			}
			if !isTerminalMissionEvent(env.EventType) {
				sawContent = true
			}

			if !h.send(ctx, conn, Envelope{
				Type:    "mission_event",
				Payload: map[string]any{"event_type": env.EventType, "data": env.Payload},
			}) {
				return
			}

			if isTerminalMissionEvent(env.EventType) {
				if !sawContent {
					h.send(ctx, conn, Envelope{Type: "assistant_fallback", Payload: map[string]any{
						"message": "mission finished without a visible response",
					}})
				}
				h.send(ctx, conn, Envelope{Type: "complete", Payload: map[string]any{"mission_id": missionID}})
				return
			}
		}
	}
}

// send rewrites legacy envelope types for the admin route and writes the
// frame, reporting whether the write succeeded.
func (h *ChatHandler) send(ctx context.Context, conn *websocket.Conn, env Envelope) bool {
	if h.LegacyErrorEnvelope && env.Type == "assistant_error" {
		env.Type = "error"
	}
	if err := writeEnvelope(ctx, conn, env); err != nil {
		h.log.Debug("failed to write chat envelope, client likely disconnected", "error", err)
		return false
	}
	return true
}
