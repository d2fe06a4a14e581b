package wsauthority

import (
	"encoding/json"

	"github.com/codeready-toolchain/missionctl/internal/storage"
)

// missionStatusView renders the `mission_status` envelope payload (spec
// §6: "First frames: one mission_status envelope... Terminal: ... sends
// a final mission_status").
func missionStatusView(m *storage.Mission) map[string]any {
	view := map[string]any{
		"id":         m.ID,
		"objective":  m.Goal,
		"status":     m.Status,
		"created_at": m.CreatedAt,
	}
	if m.ErrorMessage != nil {
		view["error"] = *m.ErrorMessage
	}
	if m.CompletedAt != nil {
		view["completed_at"] = *m.CompletedAt
	}
	return view
}

// missionEventView renders one persisted MissionEvent as a `mission_event`
// envelope payload, embedding the raw event type and its opaque data.
func missionEventView(e *storage.MissionEvent) map[string]any {
	var data map[string]any
	_ = json.Unmarshal(e.Payload, &data)
	return map[string]any{
		"event_type": e.EventType,
		"sequence":   e.Sequence,
		"data":       data,
	}
}

// outboxEnvelope is the shape internal/missionstate's Manager.emit wraps
// every published event in before handing it to the outbox (mission_id,
// sequence, event_type, payload) — internal/eventbus.Envelope.Payload
// carries exactly this JSON.
type outboxEnvelope struct {
	MissionID string         `json:"mission_id"`
	Sequence  int            `json:"sequence"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
}

func parseOutboxEnvelope(raw []byte) (outboxEnvelope, bool) {
	var env outboxEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return outboxEnvelope{}, false
	}
	return env, true
}

func isTerminalMissionEvent(eventType string) bool {
	return eventType == "mission_completed" || eventType == "mission_failed"
}
