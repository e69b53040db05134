package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Column groups cards on a board.
type Column struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"boardId"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ColumnRepository stores columns. Mutations commit atomically with their
// board event, the same discipline CardRepository follows.
type ColumnRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Column, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*Column, error)
	Create(ctx context.Context, c *Column, actorID uuid.UUID) (*BoardEvent, error)
	Rename(ctx context.Context, id uuid.UUID, name string, actorID uuid.UUID) (*Column, *BoardEvent, error)
	Delete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*BoardEvent, error)
}
