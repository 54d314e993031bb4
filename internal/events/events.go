package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypePollCreated   = "poll.created"
	TypePollClosed    = "poll.closed"
	TypePollCompleted = "poll.completed"
	TypePollDeleted   = "poll.deleted"
	TypeVoteCast      = "vote.cast"
)

// Event is the envelope shared by every message the service emits.
type Event struct {
	EventType    string      `json:"event_type"`
	EventVersion int         `json:"event_version"`
	EventID      string      `json:"event_id"`
	Timestamp    time.Time   `json:"timestamp"`
	Producer     string      `json:"producer"`
	Data         interface{} `json:"data"`
}

// Publisher sends domain events. Key selects the partition so events about
// one poll stay ordered.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, data interface{}) error
	Close() error
}

func newEvent(eventType, producer string, data interface{}) Event {
	return Event{
		EventType:    eventType,
		EventVersion: 1,
		EventID:      uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Producer:     producer,
		Data:         data,
	}
}

// Nop discards every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(_ context.Context, _, _ string, _ interface{}) error { return nil }

func (Nop) Close() error { return nil }
