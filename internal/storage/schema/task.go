package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Task holds the schema definition for the Task entity — one mission-scoped
// ordinal step assigned to a node (Strategist/Architect/Operator/Auditor).
type Task struct {
	ent.Schema
}

// Fields of the Task.
func (Task) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("mission_id").
			Immutable(),
		field.Int("ordinal").
			Immutable().
			Comment("Position within the mission's task sequence"),
		field.String("node").
			Immutable().
			Comment("Node name that produced this task (Strategist, Architect, Operator, Auditor)"),
		field.Enum("status").
			Values("pending", "running", "succeeded", "failed", "skipped").
			Default("pending"),
		field.JSON("input", map[string]interface{}{}).
			Optional(),
		field.JSON("output", map[string]interface{}{}).
			Optional(),
		field.String("error_message").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

// Edges of the Task.
func (Task) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("mission", Mission.Type).
			Ref("tasks").
			Field("mission_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the Task.
func (Task) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("mission_id", "ordinal").Unique(),
		index.Fields("status"),
	}
}
