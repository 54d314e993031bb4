package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_FillsEnvelope(t *testing.T) {
	before := time.Now().UTC()
	event := newEvent(TypePollCreated, "voting-service", map[string]int{"poll_id": 1})
	after := time.Now().UTC()

	assert.Equal(t, TypePollCreated, event.EventType)
	assert.Equal(t, 1, event.EventVersion)
	assert.Equal(t, "voting-service", event.Producer)

	_, err := uuid.Parse(event.EventID)
	require.NoError(t, err)

	assert.False(t, event.Timestamp.Before(before))
	assert.False(t, event.Timestamp.After(after))
	assert.Equal(t, time.UTC, event.Timestamp.Location())
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	first := newEvent(TypeVoteCast, "voting-service", nil)
	second := newEvent(TypeVoteCast, "voting-service", nil)
	assert.NotEqual(t, first.EventID, second.EventID)
}

func TestNop_DiscardsEverything(t *testing.T) {
	var pub Nop
	assert.NoError(t, pub.Publish(context.Background(), TypePollClosed, "key", nil))
	assert.NoError(t, pub.Close())
}
