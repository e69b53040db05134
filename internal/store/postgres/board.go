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

type BoardRepo struct {
	pool *pgxpool.Pool
}

func NewBoardRepo(pool *pgxpool.Pool) *BoardRepo {
	return &BoardRepo{pool: pool}
}

func (r *BoardRepo) Create(ctx context.Context, b *domain.Board) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO boards (id, workspace_id, name, description, created_by, last_sequence)
		 VALUES ($1, $2, $3, $4, $5, 0)
		 RETURNING created_at, updated_at`,
		b.ID, b.WorkspaceID, b.Name, b.Description, b.CreatedBy,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("boardRepo.Create: %w", err)
	}

	return nil
}

func (r *BoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	var b domain.Board
	err := r.pool.QueryRow(ctx,
		`SELECT id, workspace_id, name, description, created_by, created_at, updated_at
		 FROM boards WHERE id = $1`, id,
	).Scan(&b.ID, &b.WorkspaceID, &b.Name, &b.Description, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", err)
	}

	return &b, nil
}

func (r *BoardRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*domain.Board, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, workspace_id, name, description, created_by, created_at, updated_at
		 FROM boards WHERE workspace_id = $1
		 ORDER BY created_at`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.ListByWorkspace: %w", err)
	}
	defer rows.Close()

	var boards []*domain.Board
	for rows.Next() {
		var b domain.Board
		if err := rows.Scan(&b.ID, &b.WorkspaceID, &b.Name, &b.Description, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("boardRepo.ListByWorkspace: scan: %w", err)
		}
		boards = append(boards, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boardRepo.ListByWorkspace: rows: %w", err)
	}

	return boards, nil
}

// HasBoardAccess reports whether the user belongs to the workspace owning
// the board. Consulted at join-board and mutation-admission time.
func (r *BoardRepo) HasBoardAccess(ctx context.Context, userID, boardID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM boards b
		   JOIN workspace_members wm ON b.workspace_id = wm.workspace_id
		   WHERE b.id = $1 AND wm.user_id = $2
		 )`,
		boardID, userID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("boardRepo.HasBoardAccess: %w", err)
	}

	return ok, nil
}
