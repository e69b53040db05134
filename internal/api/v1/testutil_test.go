package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/collabboard/collabboard/internal/domain"
	"github.com/collabboard/collabboard/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the authenticated user for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserName, "Alice")
	return ctx
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	users      domain.UserRepository
	workspaces domain.WorkspaceRepository
	boards     domain.BoardRepository
	columns    domain.ColumnRepository
	cards      domain.CardRepository
	events     domain.EventLog
	access     domain.AccessChecker
}

func (m *mockDataStore) Users() domain.UserRepository           { return m.users }
func (m *mockDataStore) Workspaces() domain.WorkspaceRepository { return m.workspaces }
func (m *mockDataStore) Boards() domain.BoardRepository         { return m.boards }
func (m *mockDataStore) Columns() domain.ColumnRepository       { return m.columns }
func (m *mockDataStore) Cards() domain.CardRepository           { return m.cards }
func (m *mockDataStore) Events() domain.EventLog                { return m.events }
func (m *mockDataStore) Access() domain.AccessChecker           { return m.access }

// ---------------------------------------------------------------------------
// Mock SyncEngine
// ---------------------------------------------------------------------------

type mockSyncEngine struct {
	createCardFunc   func(ctx context.Context, actorID uuid.UUID, c *domain.Card) (*domain.Card, error)
	updateCardFunc   func(ctx context.Context, actorID, cardID uuid.UUID, expectedVersion int, changes domain.CardChanges) (*domain.Card, error)
	moveCardFunc     func(ctx context.Context, actorID, cardID uuid.UUID, expectedVersion int, columnID uuid.UUID, position int) (*domain.Card, error)
	deleteCardFunc   func(ctx context.Context, actorID, cardID uuid.UUID) error
	createColumnFunc func(ctx context.Context, actorID uuid.UUID, c *domain.Column) (*domain.Column, error)
	renameColumnFunc func(ctx context.Context, actorID, columnID uuid.UUID, name string) (*domain.Column, error)
	deleteColumnFunc func(ctx context.Context, actorID, columnID uuid.UUID) error
}

func (m *mockSyncEngine) CreateCard(ctx context.Context, actorID uuid.UUID, c *domain.Card) (*domain.Card, error) {
	return m.createCardFunc(ctx, actorID, c)
}

func (m *mockSyncEngine) UpdateCard(ctx context.Context, actorID, cardID uuid.UUID, expectedVersion int, changes domain.CardChanges) (*domain.Card, error) {
	return m.updateCardFunc(ctx, actorID, cardID, expectedVersion, changes)
}

func (m *mockSyncEngine) MoveCard(ctx context.Context, actorID, cardID uuid.UUID, expectedVersion int, columnID uuid.UUID, position int) (*domain.Card, error) {
	return m.moveCardFunc(ctx, actorID, cardID, expectedVersion, columnID, position)
}

func (m *mockSyncEngine) DeleteCard(ctx context.Context, actorID, cardID uuid.UUID) error {
	return m.deleteCardFunc(ctx, actorID, cardID)
}

func (m *mockSyncEngine) CreateColumn(ctx context.Context, actorID uuid.UUID, c *domain.Column) (*domain.Column, error) {
	return m.createColumnFunc(ctx, actorID, c)
}

func (m *mockSyncEngine) RenameColumn(ctx context.Context, actorID, columnID uuid.UUID, name string) (*domain.Column, error) {
	return m.renameColumnFunc(ctx, actorID, columnID, name)
}

func (m *mockSyncEngine) DeleteColumn(ctx context.Context, actorID, columnID uuid.UUID) error {
	return m.deleteColumnFunc(ctx, actorID, columnID)
}

// ---------------------------------------------------------------------------
// Mock EventLog
// ---------------------------------------------------------------------------

type mockEventLog struct {
	listAfterFunc  func(ctx context.Context, boardID uuid.UUID, afterSequence int64, limit int) ([]*domain.BoardEvent, error)
	listRecentFunc func(ctx context.Context, boardID uuid.UUID, limit int) ([]*domain.BoardEvent, error)
}

func (m *mockEventLog) Append(context.Context, uuid.UUID, domain.EventType, any, uuid.UUID) (*domain.BoardEvent, error) {
	panic("handlers never append directly")
}

func (m *mockEventLog) ListAfter(ctx context.Context, boardID uuid.UUID, afterSequence int64, limit int) ([]*domain.BoardEvent, error) {
	return m.listAfterFunc(ctx, boardID, afterSequence, limit)
}

func (m *mockEventLog) ListRecent(ctx context.Context, boardID uuid.UUID, limit int) ([]*domain.BoardEvent, error) {
	return m.listRecentFunc(ctx, boardID, limit)
}

// ---------------------------------------------------------------------------
// Mock AccessChecker
// ---------------------------------------------------------------------------

type mockAccess struct {
	hasAccessFunc func(ctx context.Context, userID, boardID uuid.UUID) (bool, error)
}

func (m *mockAccess) HasBoardAccess(ctx context.Context, userID, boardID uuid.UUID) (bool, error) {
	return m.hasAccessFunc(ctx, userID, boardID)
}
