// Package outbox stores integration events next to aggregate writes and
// relays them to Kafka.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one row of the outbox table. Payload is the JSON event envelope.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, createdAt time.Time) Entry {
	return Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     createdAt,
	}
}
