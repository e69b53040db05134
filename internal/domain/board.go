package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role is a workspace membership role.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Workspace owns boards and carries the membership that gates board access.
type Workspace struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedBy uuid.UUID `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WorkspaceMember links a user to a workspace with a role.
type WorkspaceMember struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
	UserID      uuid.UUID `json:"userId"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Board is the unit of event-stream and presence partitioning.
type Board struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   uuid.UUID `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type BoardRepository interface {
	Create(ctx context.Context, b *Board) error
	GetByID(ctx context.Context, id uuid.UUID) (*Board, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*Board, error)
}

type WorkspaceRepository interface {
	Create(ctx context.Context, w *Workspace) error
	AddMember(ctx context.Context, m *WorkspaceMember) error
	RoleOf(ctx context.Context, workspaceID, userID uuid.UUID) (Role, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Workspace, error)
}

// AccessChecker is the authorization collaborator consulted at join-board
// and mutation-admission time.
type AccessChecker interface {
	HasBoardAccess(ctx context.Context, userID, boardID uuid.UUID) (bool, error)
}
