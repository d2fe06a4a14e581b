package api

import "github.com/codeready-toolchain/missionctl/internal/storage"

// MissionResponse is the wire shape for a mission row (spec §6 Mission
// HTTP API), grounded on the teacher's responses.go DTO idiom of one
// struct per endpoint shape rather than marshaling domain types directly.
type MissionResponse struct {
	ID             string  `json:"id"`
	Goal           string  `json:"goal"`
	Status         string  `json:"status"`
	IterationCount int     `json:"iteration_count"`
	CreatedAt      string  `json:"created_at"`
	StartedAt      *string `json:"started_at,omitempty"`
	CompletedAt    *string `json:"completed_at,omitempty"`
	ErrorMessage   *string `json:"error_message,omitempty"`
}

func newMissionResponse(m *storage.Mission) *MissionResponse {
	resp := &MissionResponse{
		ID:             m.ID,
		Goal:           m.Goal,
		Status:         string(m.Status),
		IterationCount: m.IterationCount,
		CreatedAt:      m.CreatedAt.Format(timeLayout),
		ErrorMessage:   m.ErrorMessage,
	}
	if m.StartedAt != nil {
		s := m.StartedAt.Format(timeLayout)
		resp.StartedAt = &s
	}
	if m.CompletedAt != nil {
		s := m.CompletedAt.Format(timeLayout)
		resp.CompletedAt = &s
	}
	return resp
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// MissionEventResponse is the wire shape for one persisted mission event.
type MissionEventResponse struct {
	Sequence  int            `json:"sequence"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt string         `json:"created_at"`
}

// HealthResponse mirrors the teacher's health endpoint shape, scoped to
// this spec's components (database status only, no LLM/MCP fields).
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version"`
}
