package wsauthority

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/codeready-toolchain/missionctl/internal/apperrors"
	"github.com/codeready-toolchain/missionctl/internal/config"
	"github.com/codeready-toolchain/missionctl/internal/eventbus"
	"github.com/codeready-toolchain/missionctl/internal/missionstate"
)

// MissionStreamHandler serves `/missions/{id}/ws` (spec §4.7 mission
// streaming variant + §6): an initial snapshot, a full catch-up replay
// of persisted events, then a live relay off the event bus until a
// terminal event closes the connection.
type MissionStreamHandler struct {
	Policy       Policy
	Auth         Authenticator
	Config       config.WSAuthConfig
	Manager      *missionstate.Manager
	Bus          *eventbus.Bus
	CatchupLimit int

	log *slog.Logger
}

// NewMissionStreamHandler constructs a MissionStreamHandler.
func NewMissionStreamHandler(auth Authenticator, cfg config.WSAuthConfig, manager *missionstate.Manager, bus *eventbus.Bus, catchupLimit int) *MissionStreamHandler {
	if catchupLimit <= 0 {
		catchupLimit = 200
	}
	return &MissionStreamHandler{
		Policy:       Policy{RouteID: "mission_stream"},
		Auth:         auth,
		Config:       cfg,
		Manager:      manager,
		Bus:          bus,
		CatchupLimit: catchupLimit,
		log:          slog.With("component", "wsauthority.mission_stream"),
	}
}

// Serve drives one mission-streaming connection to completion.
func (h *MissionStreamHandler) Serve(w http.ResponseWriter, r *http.Request, missionID string) {
	conn, _, err := Accept(w, r, h.Auth, h.Policy, h.Config)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	ctx := r.Context()

	mission, err := h.Manager.GetMission(ctx, missionID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			_ = conn.Close(websocket.StatusCode(apperrors.KindNotFound.WSCloseCode()), "mission not found")
		} else {
			_ = conn.Close(websocket.StatusInternalError, "internal error")
		}
		return
	}

	if err := writeEnvelope(ctx, conn, Envelope{Type: "mission_status", Payload: missionStatusView(mission)}); err != nil {
		return
	}

	// Subscribe before replaying history so no event published during the
	// replay window is missed (mirrors the teacher's subscribe-before-
	// catchup ordering in pkg/events.ConnectionManager.subscribe).
	sub := h.Bus.Subscribe("mission." + missionID)
	defer h.Bus.Unsubscribe(sub)

	lastSeq, err := h.replay(ctx, conn, missionID)
	if err != nil {
		return
	}

	h.relay(ctx, conn, missionID, sub, lastSeq)
}

// replay sends the full persisted event history, followed by a
// `catchup_overflow` envelope when the history exceeds CatchupLimit; the
// limit never shortens the replay. It returns the highest sequence number
// sent.
func (h *MissionStreamHandler) replay(ctx context.Context, conn *websocket.Conn, missionID string) (int, error) {
	count, err := h.Manager.CountMissionEventsSince(ctx, missionID, 0)
	if err != nil {
		h.log.Warn("failed to count mission events for catch-up", "mission_id", missionID, "error", err)
		count = 0
	}

	limit := h.CatchupLimit
	if count > limit {
		limit = count // still replay everything; overflow flag just warns the client more may follow live
	}

	events, err := h.Manager.GetMissionEvents(ctx, missionID, 0, limit)
	if err != nil {
		return 0, err
	}

	lastSeq := 0
	for _, e := range events {
		if err := writeEnvelope(ctx, conn, Envelope{Type: "mission_event", Payload: missionEventView(e)}); err != nil {
			return lastSeq, err
		}
		lastSeq = e.Sequence
	}

	if count > h.CatchupLimit {
		if err := writeEnvelope(ctx, conn, Envelope{Type: "catchup_overflow", Payload: map[string]any{"has_more": true}}); err != nil {
			return lastSeq, err
		}
	}

	return lastSeq, nil
}

// relay streams live events off the bus, filtering anything at or below
// lastSeq so the catch-up/live boundary is monotonic and non-duplicative
// (spec §5), until a terminal mission event closes the connection.
func (h *MissionStreamHandler) relay(ctx context.Context, conn *websocket.Conn, missionID string, sub *eventbus.Subscription, lastSeq int) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			env, ok := parseOutboxEnvelope(evt.Payload)
			if !ok || env.Sequence <= lastSeq {
				continue
			}
			lastSeq = env.Sequence

			if err := writeEnvelope(ctx, conn, Envelope{
				Type:    "mission_event",
				Payload: map[string]any{"event_type": env.EventType, "sequence": env.Sequence, "data": env.Payload},
			}); err != nil {
				return
			}

			if isTerminalMissionEvent(env.EventType) {
				if fresh, err := h.Manager.GetMission(ctx, missionID); err == nil {
					_ = writeEnvelope(ctx, conn, Envelope{Type: "mission_status", Payload: missionStatusView(fresh)})
				}
				return
			}
		}
	}
}
