package ws

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/collabboard/collabboard/internal/domain"
)

// Frame is the wire envelope for every message in both directions:
// {"type": <string>, "payload": {...}}.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client -> server frame types.
const (
	FrameJoinBoard  = "join_board"
	FrameLeaveBoard = "leave_board"
	FrameSendChat   = "send_chat_message"
	FrameHeartbeat  = "heartbeat"
)

// Server -> client frame types that are not board events.
const (
	FrameChatMessage    = "chat_message"
	FramePresenceUpdate = "presence_update"
	FrameError          = "error"
)

type JoinBoardPayload struct {
	BoardID     uuid.UUID `json:"boardId"`
	LastEventID *int64    `json:"lastEventId,omitempty"`
}

type LeaveBoardPayload struct {
	BoardID uuid.UUID `json:"boardId"`
}

type SendChatPayload struct {
	BoardID uuid.UUID `json:"boardId"`
	Message string    `json:"message"`
}

type HeartbeatPayload struct {
	BoardID uuid.UUID `json:"boardId"`
}

type PresenceUpdatePayload struct {
	BoardID uuid.UUID               `json:"boardId"`
	Users   []*domain.PresenceEntry `json:"users"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// EncodeEvent frames a committed board event for delivery. The stored
// payload is widened with eventId (the sequence) and userId (the actor), so
// catch-up and live traffic share one byte shape and clients cannot tell
// them apart except by sequence continuity.
func EncodeEvent(ev *domain.BoardEvent) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(ev.Payload, &fields); err != nil {
		return nil, fmt.Errorf("ws.EncodeEvent: payload: %w", err)
	}

	seq, err := json.Marshal(ev.Sequence)
	if err != nil {
		return nil, fmt.Errorf("ws.EncodeEvent: %w", err)
	}
	actor, err := json.Marshal(ev.ActorID)
	if err != nil {
		return nil, fmt.Errorf("ws.EncodeEvent: %w", err)
	}

	fields["eventId"] = seq
	fields["userId"] = actor

	return encodeFrame(string(ev.Type), fields)
}

// EventSequence extracts the eventId from a framed board event. Returns
// (0, false) for frames without one (chat, presence, error).
func EventSequence(raw []byte) (int64, bool) {
	var frame struct {
		Payload struct {
			EventID *int64 `json:"eventId"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Payload.EventID == nil {
		return 0, false
	}
	return *frame.Payload.EventID, true
}

// EncodeChat frames an ephemeral chat message.
func EncodeChat(msg *domain.ChatMessage) ([]byte, error) {
	return encodeFrame(FrameChatMessage, msg)
}

// EncodePresence frames a presence snapshot broadcast.
func EncodePresence(boardID uuid.UUID, users []*domain.PresenceEntry) ([]byte, error) {
	if users == nil {
		users = []*domain.PresenceEntry{}
	}
	return encodeFrame(FramePresenceUpdate, PresenceUpdatePayload{BoardID: boardID, Users: users})
}

// EncodeError frames an error notification.
func EncodeError(message, code string) ([]byte, error) {
	return encodeFrame(FrameError, ErrorPayload{Message: message, Code: code})
}

func encodeFrame(frameType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ws.encodeFrame: %s: %w", frameType, err)
	}

	out, err := json.Marshal(Frame{Type: frameType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("ws.encodeFrame: %s: %w", frameType, err)
	}

	return out, nil
}
