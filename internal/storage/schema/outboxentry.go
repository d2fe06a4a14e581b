package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// OutboxEntry holds the schema definition for the OutboxEntry entity — the
// transactional outbox row inserted alongside a MissionEvent in the same
// SQL transaction, and drained by the outbox worker via SKIP LOCKED.
type OutboxEntry struct {
	ent.Schema
}

// Fields of the OutboxEntry.
func (OutboxEntry) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("mission_id").
			Immutable(),
		field.String("topic").
			Immutable().
			Comment("Event bus topic this entry publishes to"),
		field.JSON("payload", map[string]interface{}{}),
		field.Enum("status").
			Values("pending", "processed", "failed").
			Default("pending"),
		field.Int("retry_count").
			Default(0),
		field.String("last_error").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("processed_at").
			Optional().
			Nillable(),
	}
}

// Indexes of the OutboxEntry.
func (OutboxEntry) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "created_at"),
	}
}

// Annotations — the draining query uses FOR UPDATE SKIP LOCKED over raw
// SQL rather than this annotation, but it documents the intended access
// pattern for anyone authoring a migration by hand.
func (OutboxEntry) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{},
	}
}
