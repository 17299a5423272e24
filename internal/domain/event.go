package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventGameImported     EventType = "archive.game.imported"
	EventGameDeleted      EventType = "archive.game.deleted"
	EventPageDeleted      EventType = "archive.page.deleted"
	EventCharacterTagged  EventType = "archive.character.tagged"
	EventDailyPanelPinned EventType = "archive.daily.pinned"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateGame      AggregateType = "game"
	AggregatePage      AggregateType = "page"
	AggregateCharacter AggregateType = "character"
	AggregateDaily     AggregateType = "daily"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	SeqID         int64           `json:"-"`
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType AggregateType   `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewOutboxDraft marshals payload into a fresh draft.
func NewOutboxDraft(agg AggregateType, aggID string, event EventType, payload interface{}) (OutboxDraft, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return OutboxDraft{}, err
	}
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: agg,
		AggregateID:   aggID,
		EventType:     event,
		Payload:       raw,
		OccurredAt:    time.Now().UTC(),
	}, nil
}
