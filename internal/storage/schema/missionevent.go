package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// MissionEvent holds the schema definition for the MissionEvent entity — an
// append-only log with a strictly increasing per-mission sequence number,
// the record stream the WebSocket Authority replays on catch-up.
type MissionEvent struct {
	ent.Schema
}

// Fields of the MissionEvent.
func (MissionEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("mission_id").
			Immutable(),
		field.Int("sequence").
			Immutable().
			Comment("Strictly increasing per mission_id, assigned under the mission lock"),
		field.String("event_type").
			Immutable().
			Comment("mission_created, status_change, task_completed, mission_completed, ..."),
		field.JSON("payload", map[string]interface{}{}).
			Optional(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the MissionEvent.
func (MissionEvent) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("mission", Mission.Type).
			Ref("events").
			Field("mission_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the MissionEvent.
func (MissionEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("mission_id", "sequence").Unique(),
	}
}
