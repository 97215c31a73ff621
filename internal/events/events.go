// Package events defines resolution events and the sinks that persist or
// publish them.
package events

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the resolution pipeline.
const (
	AggregateTypeEntity     = "entity"
	EventTypeEntityResolved = "ENTITY_RESOLVED"
)

// eventNamespace seeds the deterministic aggregate-id derivation for
// entity ids that are not themselves UUIDs.
var eventNamespace = uuid.MustParse("f3b5c1e2-9d4a-4c6b-8e7f-2a1d0c9b8a77")

// Payload carries the resolved pair.
type Payload struct {
	EntityA string  `json:"entity_a"`
	EntityB string  `json:"entity_b"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

// Event is one resolution event. The event id is random per emission, but
// the aggregate id is a pure function of the entity pair so that repeated
// resolutions of the same pair address the same aggregate.
type Event struct {
	ID            uuid.UUID `json:"id"`
	AggregateID   uuid.UUID `json:"aggregate_id"`
	AggregateType string    `json:"aggregate_type"`
	EventType     string    `json:"event_type"`
	Version       int       `json:"version"`
	Payload       Payload   `json:"payload"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEntityResolved builds an ENTITY_RESOLVED event for a matched pair.
func NewEntityResolved(entityA, entityB string, score float64, reason string) Event {
	return Event{
		ID:            uuid.New(),
		AggregateID:   aggregateID(entityA, entityB),
		AggregateType: AggregateTypeEntity,
		EventType:     EventTypeEntityResolved,
		Version:       1,
		Payload: Payload{
			EntityA: entityA,
			EntityB: entityB,
			Score:   score,
			Reason:  reason,
		},
		OccurredAt: time.Now().UTC(),
	}
}

// aggregateID derives a stable UUID for the pair. When the first entity id
// already is a UUID it is used directly; otherwise a name-based UUID over
// the sorted pair keeps the derivation order-independent.
func aggregateID(entityA, entityB string) uuid.UUID {
	if id, err := uuid.Parse(entityA); err == nil {
		return id
	}
	pair := []string{entityA, entityB}
	sort.Strings(pair)
	return uuid.NewSHA1(eventNamespace, []byte(pair[0]+"|"+pair[1]))
}

// Sink receives resolution events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
