package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// PlanHash holds the schema definition for the PlanHash entity — one row per
// Strategist plan, compared after each Strategist step to detect
// consecutive-equal plan hashes (loop detection).
type PlanHash struct {
	ent.Schema
}

// Fields of the PlanHash.
func (PlanHash) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("mission_id").
			Immutable(),
		field.Int("iteration").
			Immutable().
			Comment("Which supervisor iteration produced this plan"),
		field.String("hash").
			Immutable().
			Comment("Canonical hash of the Strategist's emitted plan"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the PlanHash.
func (PlanHash) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("mission", Mission.Type).
			Ref("plan_hashes").
			Field("mission_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the PlanHash.
func (PlanHash) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("mission_id", "iteration").Unique(),
	}
}
