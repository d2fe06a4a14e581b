package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// IdempotencyRecord holds the schema definition for the IdempotencyRecord
// entity — keyed by (key, method, path), cycling processing -> cached,
// TTL-bounded (spec §4.8).
type IdempotencyRecord struct {
	ent.Schema
}

// Fields of the IdempotencyRecord.
func (IdempotencyRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("key").
			Immutable(),
		field.String("method").
			Immutable(),
		field.String("path").
			Immutable(),
		field.Enum("state").
			Values("processing", "cached").
			Default("processing"),
		field.Int("response_status").
			Optional(),
		field.Bytes("response_body").
			Optional(),
		field.JSON("response_headers", map[string]string{}).
			Optional(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("expires_at").
			Comment("processing rows expire quickly (~60s); cached rows live ~24h"),
	}
}

// Indexes of the IdempotencyRecord.
func (IdempotencyRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("key", "method", "path").Unique(),
		index.Fields("expires_at"),
	}
}
