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

type ColumnRepo struct {
	pool *pgxpool.Pool
}

func NewColumnRepo(pool *pgxpool.Pool) *ColumnRepo {
	return &ColumnRepo{pool: pool}
}

func (r *ColumnRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Column, error) {
	var c domain.Column
	err := r.pool.QueryRow(ctx,
		`SELECT id, board_id, name, position, created_at, updated_at
		 FROM columns WHERE id = $1`, id,
	).Scan(&c.ID, &c.BoardID, &c.Name, &c.Position, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("columnRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("columnRepo.GetByID: %w", err)
	}

	return &c, nil
}

func (r *ColumnRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, board_id, name, position, created_at, updated_at
		 FROM columns WHERE board_id = $1
		 ORDER BY position`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	var cols []*domain.Column
	for rows.Next() {
		var c domain.Column
		if err := rows.Scan(&c.ID, &c.BoardID, &c.Name, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("columnRepo.ListByBoard: scan: %w", err)
		}
		cols = append(cols, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columnRepo.ListByBoard: rows: %w", err)
	}

	return cols, nil
}

func (r *ColumnRepo) Create(ctx context.Context, c *domain.Column, actorID uuid.UUID) (*domain.BoardEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Create: begin: %w: %w", domain.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if c.Position < 0 {
		err = tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM columns WHERE board_id = $1`,
			c.BoardID,
		).Scan(&c.Position)
		if err != nil {
			return nil, fmt.Errorf("columnRepo.Create: next position: %w", err)
		}
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO columns (id, board_id, name, position)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		c.ID, c.BoardID, c.Name, c.Position,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Create: insert: %w: %w", domain.ErrStorageUnavailable, err)
	}

	ev, err := appendEventTx(ctx, tx, c.BoardID, domain.EventColumnCreated,
		domain.ColumnCreatedPayload{Column: c}, actorID)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Create: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("columnRepo.Create: commit: %w: %w", domain.ErrStorageUnavailable, err)
	}

	return ev, nil
}

func (r *ColumnRepo) Rename(ctx context.Context, id uuid.UUID, name string, actorID uuid.UUID) (*domain.Column, *domain.BoardEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("columnRepo.Rename: begin: %w: %w", domain.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var c domain.Column
	err = tx.QueryRow(ctx,
		`UPDATE columns SET name = $2, updated_at = clock_timestamp()
		 WHERE id = $1
		 RETURNING id, board_id, name, position, created_at, updated_at`,
		id, name,
	).Scan(&c.ID, &c.BoardID, &c.Name, &c.Position, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("columnRepo.Rename: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("columnRepo.Rename: %w: %w", domain.ErrStorageUnavailable, err)
	}

	ev, err := appendEventTx(ctx, tx, c.BoardID, domain.EventColumnRenamed,
		domain.ColumnRenamedPayload{ColumnID: c.ID, BoardID: c.BoardID, Name: c.Name}, actorID)
	if err != nil {
		return nil, nil, fmt.Errorf("columnRepo.Rename: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("columnRepo.Rename: commit: %w: %w", domain.ErrStorageUnavailable, err)
	}

	return &c, ev, nil
}

func (r *ColumnRepo) Delete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*domain.BoardEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Delete: begin: %w: %w", domain.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var boardID uuid.UUID
	err = tx.QueryRow(ctx,
		`DELETE FROM columns WHERE id = $1 RETURNING board_id`, id,
	).Scan(&boardID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("columnRepo.Delete: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Delete: %w: %w", domain.ErrStorageUnavailable, err)
	}

	ev, err := appendEventTx(ctx, tx, boardID, domain.EventColumnDeleted,
		domain.ColumnDeletedPayload{ColumnID: id, BoardID: boardID}, actorID)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Delete: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("columnRepo.Delete: commit: %w: %w", domain.ErrStorageUnavailable, err)
	}

	return ev, nil
}
