package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType tags the mutation kind recorded by a BoardEvent.
type EventType string

const (
	EventCardCreated   EventType = "card_created"
	EventCardUpdated   EventType = "card_updated"
	EventCardMoved     EventType = "card_moved"
	EventCardDeleted   EventType = "card_deleted"
	EventColumnCreated EventType = "column_created"
	EventColumnRenamed EventType = "column_renamed"
	EventColumnDeleted EventType = "column_deleted"
)

// Valid reports whether t is a known mutation event type.
func (t EventType) Valid() bool {
	switch t {
	case EventCardCreated, EventCardUpdated, EventCardMoved, EventCardDeleted,
		EventColumnCreated, EventColumnRenamed, EventColumnDeleted:
		return true
	}
	return false
}

// BoardEvent is one immutable entry in a board's append log. Sequence is
// strictly increasing and gapless per board, assigned at commit time by the
// event log and never reused.
type BoardEvent struct {
	ID        uuid.UUID       `json:"id"`
	BoardID   uuid.UUID       `json:"boardId"`
	Sequence  int64           `json:"sequence"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	ActorID   uuid.UUID       `json:"actorId"`
	CreatedAt time.Time       `json:"createdAt"`
}

// EventLog is the durable per-board append log.
//
// Append assigns the next sequence number (max+1, 1 for an empty board) and
// stores the event before returning; concurrent appends to the same board
// must never share a sequence or leave a gap. ListAfter returns events with
// sequence > afterSequence ascending, capped at limit. ListRecent is the
// "recent activity" view: newest first, capped at limit.
type EventLog interface {
	Append(ctx context.Context, boardID uuid.UUID, eventType EventType, payload any, actorID uuid.UUID) (*BoardEvent, error)
	ListAfter(ctx context.Context, boardID uuid.UUID, afterSequence int64, limit int) ([]*BoardEvent, error)
	ListRecent(ctx context.Context, boardID uuid.UUID, limit int) ([]*BoardEvent, error)
}

// Replay caps. ReplayLimit bounds catch-up queries; RecentLimit bounds the
// no-cursor activity view.
const (
	ReplayLimit = 1000
	RecentLimit = 100
)

// Event payload variants, one per EventType. Stored verbatim in the log;
// the wire layer adds eventId and userId when framing.

type CardCreatedPayload struct {
	Card *Card `json:"card"`
}

type CardUpdatedPayload struct {
	CardID  uuid.UUID   `json:"cardId"`
	BoardID uuid.UUID   `json:"boardId"`
	Updates CardChanges `json:"updates"`
}

type CardMovedPayload struct {
	CardID   uuid.UUID `json:"cardId"`
	BoardID  uuid.UUID `json:"boardId"`
	ColumnID uuid.UUID `json:"columnId"`
	Position int       `json:"position"`
	Version  int       `json:"version"`
}

type CardDeletedPayload struct {
	CardID  uuid.UUID `json:"cardId"`
	BoardID uuid.UUID `json:"boardId"`
}

type ColumnCreatedPayload struct {
	Column *Column `json:"column"`
}

type ColumnRenamedPayload struct {
	ColumnID uuid.UUID `json:"columnId"`
	BoardID  uuid.UUID `json:"boardId"`
	Name     string    `json:"name"`
}

type ColumnDeletedPayload struct {
	ColumnID uuid.UUID `json:"columnId"`
	BoardID  uuid.UUID `json:"boardId"`
}

var ErrInvalidPayload = errors.New("event: invalid payload")

// ValidatePayload checks that raw is a well-formed payload for eventType.
// Enforced at append time so malformed events can never break replay
// consumers. Unknown fields are rejected.
func ValidatePayload(eventType EventType, raw json.RawMessage) error {
	if !eventType.Valid() {
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidPayload, eventType)
	}

	var target any
	switch eventType {
	case EventCardCreated:
		target = &CardCreatedPayload{}
	case EventCardUpdated:
		target = &CardUpdatedPayload{}
	case EventCardMoved:
		target = &CardMovedPayload{}
	case EventCardDeleted:
		target = &CardDeletedPayload{}
	case EventColumnCreated:
		target = &ColumnCreatedPayload{}
	case EventColumnRenamed:
		target = &ColumnRenamedPayload{}
	case EventColumnDeleted:
		target = &ColumnDeletedPayload{}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, eventType, err)
	}

	return validateRequired(eventType, target)
}

func validateRequired(eventType EventType, payload any) error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s: missing %s", ErrInvalidPayload, eventType, field)
	}

	switch p := payload.(type) {
	case *CardCreatedPayload:
		if p.Card == nil {
			return missing("card")
		}
		if p.Card.ID == uuid.Nil || p.Card.BoardID == uuid.Nil || p.Card.ColumnID == uuid.Nil {
			return missing("card identifiers")
		}
	case *CardUpdatedPayload:
		if p.CardID == uuid.Nil || p.BoardID == uuid.Nil {
			return missing("card identifiers")
		}
	case *CardMovedPayload:
		if p.CardID == uuid.Nil || p.BoardID == uuid.Nil || p.ColumnID == uuid.Nil {
			return missing("card identifiers")
		}
	case *CardDeletedPayload:
		if p.CardID == uuid.Nil || p.BoardID == uuid.Nil {
			return missing("card identifiers")
		}
	case *ColumnCreatedPayload:
		if p.Column == nil {
			return missing("column")
		}
		if p.Column.ID == uuid.Nil || p.Column.BoardID == uuid.Nil {
			return missing("column identifiers")
		}
		if p.Column.Name == "" {
			return missing("column name")
		}
	case *ColumnRenamedPayload:
		if p.ColumnID == uuid.Nil || p.BoardID == uuid.Nil {
			return missing("column identifiers")
		}
		if p.Name == "" {
			return missing("name")
		}
	case *ColumnDeletedPayload:
		if p.ColumnID == uuid.Nil || p.BoardID == uuid.Nil {
			return missing("column identifiers")
		}
	}

	return nil
}

// MarshalPayload serializes and validates a payload for storage.
func MarshalPayload(eventType EventType, payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("domain.MarshalPayload: %w", err)
	}
	if err := ValidatePayload(eventType, raw); err != nil {
		return nil, fmt.Errorf("domain.MarshalPayload: %w", err)
	}
	return raw, nil
}
