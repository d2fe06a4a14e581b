package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Mission holds the schema definition for the Mission entity.
//
// This file documents the runtime table shape; it is not compiled into a
// generated client. internal/storage reads and writes this table directly
// over database/sql, matching the raw-SQL precedent the teacher itself
// uses for high-volume append-only tables.
type Mission struct {
	ent.Schema
}

// Fields of the Mission.
func (Mission) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.Text("goal").
			Comment("Operator-submitted mission goal"),
		field.Enum("status").
			Values("pending", "running", "success", "partial_success", "failed", "cancelled").
			Default("pending"),
		field.String("idempotency_key").
			Optional().
			Nillable().
			Comment("Creation dedupe key, unique across missions"),
		field.JSON("result", map[string]interface{}{}).
			Optional().
			Comment("Final mission output, set on terminal transition"),
		field.String("error_message").
			Optional().
			Nillable(),
		field.Int("iteration_count").
			Default(0).
			Comment("Supervisor re-plan count, bounded by supervisor.max_iterations"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

// Edges of the Mission.
func (Mission) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("tasks", Task.Type),
		edge.To("events", MissionEvent.Type),
		edge.To("plan_hashes", PlanHash.Type),
	}
}

// Indexes of the Mission.
func (Mission) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("status", "created_at"),
		index.Fields("idempotency_key").Unique(),
	}
}
