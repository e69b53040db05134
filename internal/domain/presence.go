package domain

import (
	"context"

	"github.com/google/uuid"
)

// PresenceEntry records that a user is currently viewing a board. JoinedAt is
// Unix milliseconds, preserved across heartbeats. Presence is observational
// state: TTL-bounded, never part of the event log, and carries no ordering
// guarantee relative to board events.
type PresenceEntry struct {
	UserID   uuid.UUID `json:"userId"`
	UserName string    `json:"userName"`
	JoinedAt int64     `json:"joinedAt"`
}

// PresenceTracker is the ephemeral per-board viewer registry. All operations
// are best-effort: callers log and swallow failures, they never surface a
// presence error as a mutation or join failure.
type PresenceTracker interface {
	Join(ctx context.Context, boardID, userID uuid.UUID, userName string) error
	Heartbeat(ctx context.Context, boardID, userID uuid.UUID) error
	Leave(ctx context.Context, boardID, userID uuid.UUID) error
	Snapshot(ctx context.Context, boardID uuid.UUID) ([]*PresenceEntry, error)
}
