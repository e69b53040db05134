package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/collabboard/collabboard/internal/auth"
	"github.com/collabboard/collabboard/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Users() domain.UserRepository
	Workspaces() domain.WorkspaceRepository
	Boards() domain.BoardRepository
	Columns() domain.ColumnRepository
	Cards() domain.CardRepository
	Events() domain.EventLog
	Access() domain.AccessChecker
}

// SyncEngine abstracts the mutation commit pipeline for handler testing.
// *boardsync.Engine satisfies this interface.
type SyncEngine interface {
	CreateCard(ctx context.Context, actorID uuid.UUID, c *domain.Card) (*domain.Card, error)
	UpdateCard(ctx context.Context, actorID, cardID uuid.UUID, expectedVersion int, changes domain.CardChanges) (*domain.Card, error)
	MoveCard(ctx context.Context, actorID, cardID uuid.UUID, expectedVersion int, columnID uuid.UUID, position int) (*domain.Card, error)
	DeleteCard(ctx context.Context, actorID, cardID uuid.UUID) error
	CreateColumn(ctx context.Context, actorID uuid.UUID, c *domain.Column) (*domain.Column, error)
	RenameColumn(ctx context.Context, actorID, columnID uuid.UUID, name string) (*domain.Column, error)
	DeleteColumn(ctx context.Context, actorID, columnID uuid.UUID) error
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, email, name, password string) (*domain.User, *auth.TokenPair, error)
	Login(ctx context.Context, email, password string) (*domain.User, *auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
}
