package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/collabboard/collabboard/internal/domain"
)

type WorkspaceRepo struct {
	pool *pgxpool.Pool
}

func NewWorkspaceRepo(pool *pgxpool.Pool) *WorkspaceRepo {
	return &WorkspaceRepo{pool: pool}
}

func (r *WorkspaceRepo) Create(ctx context.Context, w *domain.Workspace) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO workspaces (id, name, created_by)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		w.ID, w.Name, w.CreatedBy,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("workspaceRepo.Create: %w", err)
	}

	return nil
}

func (r *WorkspaceRepo) AddMember(ctx context.Context, m *domain.WorkspaceMember) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO workspace_members (id, workspace_id, user_id, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING joined_at`,
		m.ID, m.WorkspaceID, m.UserID, m.Role,
	).Scan(&m.JoinedAt)
	if err != nil {
		return fmt.Errorf("workspaceRepo.AddMember: %w", err)
	}

	return nil
}

func (r *WorkspaceRepo) RoleOf(ctx context.Context, workspaceID, userID uuid.UUID) (domain.Role, error) {
	var role domain.Role
	err := r.pool.QueryRow(ctx,
		`SELECT role FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`,
		workspaceID, userID,
	).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("workspaceRepo.RoleOf: %w", domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("workspaceRepo.RoleOf: %w", err)
	}

	return role, nil
}

func (r *WorkspaceRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Workspace, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT w.id, w.name, w.created_by, w.created_at, w.updated_at
		 FROM workspaces w
		 JOIN workspace_members wm ON w.id = wm.workspace_id
		 WHERE wm.user_id = $1
		 ORDER BY w.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("workspaceRepo.ListByUser: %w", err)
	}
	defer rows.Close()

	var workspaces []*domain.Workspace
	for rows.Next() {
		var w domain.Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("workspaceRepo.ListByUser: scan: %w", err)
		}
		workspaces = append(workspaces, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workspaceRepo.ListByUser: rows: %w", err)
	}

	return workspaces, nil
}
