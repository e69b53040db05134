package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Card is the versioned mutable entity on a board. Version starts at 0 and
// increments by exactly 1 on every accepted mutation; a mutation is admitted
// only when the caller's expected version matches the stored one.
type Card struct {
	ID          uuid.UUID `json:"id"`
	BoardID     uuid.UUID `json:"boardId"`
	ColumnID    uuid.UUID `json:"columnId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Position    int       `json:"position"`
	Version     int       `json:"version"`
	CreatedBy   uuid.UUID `json:"createdBy"`
	UpdatedBy   uuid.UUID `json:"updatedBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CardChanges describes a content update. Nil pointer fields are left
// untouched. Version, UpdatedBy and UpdatedAt reflect the state after the
// mutation and are filled in by the store.
type CardChanges struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Version     int       `json:"version"`
	UpdatedBy   uuid.UUID `json:"updatedBy"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Empty reports whether the change set touches no content field.
func (c CardChanges) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Tags == nil
}

// CardRepository stores cards and commits each accepted mutation together
// with its board event as one atomic unit: the version check, the entity
// write and the log append all succeed or all roll back.
//
// Update and Move fail with *VersionConflictError when expectedVersion is
// stale and with ErrNotFound when the card does not exist (including after
// deletion, which is terminal).
type CardRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Card, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*Card, error)
	Create(ctx context.Context, c *Card) (*BoardEvent, error)
	Update(ctx context.Context, id uuid.UUID, expectedVersion int, changes CardChanges, actorID uuid.UUID) (*Card, *BoardEvent, error)
	Move(ctx context.Context, id uuid.UUID, expectedVersion int, columnID uuid.UUID, position int, actorID uuid.UUID) (*Card, *BoardEvent, error)
	Delete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*BoardEvent, error)
}
