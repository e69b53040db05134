package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is an ephemeral board message. It bypasses the event log
// entirely: broadcast live only, no sequence number, no replay.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"boardId"`
	UserID    uuid.UUID `json:"userId"`
	UserName  string    `json:"userName"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// MaxChatMessageLen bounds a chat message body.
const MaxChatMessageLen = 1000
