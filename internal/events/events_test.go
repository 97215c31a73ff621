package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntityResolved(t *testing.T) {
	t.Run("populates envelope", func(t *testing.T) {
		event := NewEntityResolved("e1", "e2", 0.91, "name variant")

		assert.NotEqual(t, uuid.Nil, event.ID)
		assert.Equal(t, AggregateTypeEntity, event.AggregateType)
		assert.Equal(t, EventTypeEntityResolved, event.EventType)
		assert.Equal(t, 1, event.Version)
		assert.Equal(t, "e1", event.Payload.EntityA)
		assert.Equal(t, "e2", event.Payload.EntityB)
		assert.Equal(t, 0.91, event.Payload.Score)
		assert.Equal(t, "name variant", event.Payload.Reason)
		assert.False(t, event.OccurredAt.IsZero())
	})

	t.Run("aggregate id is stable per pair", func(t *testing.T) {
		first := NewEntityResolved("e1", "e2", 0.91, "")
		second := NewEntityResolved("e1", "e2", 0.85, "different run")

		assert.Equal(t, first.AggregateID, second.AggregateID)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("aggregate id ignores pair order for opaque ids", func(t *testing.T) {
		forward := NewEntityResolved("acct-alpha", "acct-beta", 0.9, "")
		reverse := NewEntityResolved("acct-beta", "acct-alpha", 0.9, "")

		assert.Equal(t, forward.AggregateID, reverse.AggregateID)
	})

	t.Run("uuid entity id is used directly", func(t *testing.T) {
		id := uuid.New()

		event := NewEntityResolved(id.String(), "e2", 0.9, "")

		assert.Equal(t, id, event.AggregateID)
	})

	t.Run("distinct pairs get distinct aggregates", func(t *testing.T) {
		require.NotEqual(t,
			NewEntityResolved("e1", "e2", 0.9, "").AggregateID,
			NewEntityResolved("e1", "e3", 0.9, "").AggregateID)
	})
}
