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

// CardRepo stores cards. Every mutation runs its optimistic version check,
// the entity write and the event append in a single transaction, so a commit
// is all-or-nothing: no mutated card without its event, no event without its
// mutation.
type CardRepo struct {
	pool *pgxpool.Pool
}

func NewCardRepo(pool *pgxpool.Pool) *CardRepo {
	return &CardRepo{pool: pool}
}

const cardColumns = `id, board_id, column_id, title, description, tags, position, version,
	created_by, updated_by, created_at, updated_at`

func (r *CardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`, id)

	c, err := scanCard(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cardRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cardRepo.GetByID: %w", err)
	}

	return c, nil
}

func (r *CardRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Card, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE board_id = $1
		 ORDER BY column_id, position
		 LIMIT 1000`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("cardRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	var cards []*domain.Card
	for rows.Next() {
		c, scanErr := scanCard(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("cardRepo.ListByBoard: scan: %w", scanErr)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cardRepo.ListByBoard: rows: %w", err)
	}

	return cards, nil
}

// Create inserts the card at version 0, placing it at the end of its column
// when Position is negative, and appends the card_created event.
func (r *CardRepo) Create(ctx context.Context, c *domain.Card) (*domain.BoardEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("cardRepo.Create: begin: %w: %w", domain.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if c.Position < 0 {
		err = tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM cards WHERE column_id = $1`,
			c.ColumnID,
		).Scan(&c.Position)
		if err != nil {
			return nil, fmt.Errorf("cardRepo.Create: next position: %w", err)
		}
	}

	c.Version = 0
	if c.Tags == nil {
		c.Tags = []string{}
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO cards (id, board_id, column_id, title, description, tags, position, version, created_by, updated_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $8)
		 RETURNING created_at, updated_at`,
		c.ID, c.BoardID, c.ColumnID, c.Title, c.Description, c.Tags, c.Position, c.CreatedBy,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("cardRepo.Create: insert: %w: %w", domain.ErrStorageUnavailable, err)
	}
	c.UpdatedBy = c.CreatedBy

	ev, err := appendEventTx(ctx, tx, c.BoardID, domain.EventCardCreated,
		domain.CardCreatedPayload{Card: c}, c.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("cardRepo.Create: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("cardRepo.Create: commit: %w: %w", domain.ErrStorageUnavailable, err)
	}

	return ev, nil
}

// Update applies a content change guarded by expectedVersion. The UPDATE's
// version predicate is the compare-and-set: of two concurrent updates
// carrying the same expected version, exactly one matches a row.
func (r *CardRepo) Update(ctx context.Context, id uuid.UUID, expectedVersion int, changes domain.CardChanges, actorID uuid.UUID) (*domain.Card, *domain.BoardEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("cardRepo.Update: begin: %w: %w", domain.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	row := tx.QueryRow(ctx,
		`UPDATE cards
		 SET title       = COALESCE($3, title),
		     description = COALESCE($4, description),
		     tags        = COALESCE($5, tags),
		     version     = version + 1,
		     updated_by  = $6,
		     updated_at  = clock_timestamp()
		 WHERE id = $1 AND version = $2
		 RETURNING `+cardColumns,
		id, expectedVersion, changes.Title, changes.Description, changes.Tags, actorID,
	)

	c, err := scanCard(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, r.guardFailure(ctx, tx, id, "cardRepo.Update")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("cardRepo.Update: %w: %w", domain.ErrStorageUnavailable, err)
	}

	changes.Version = c.Version
	changes.UpdatedBy = actorID
	changes.UpdatedAt = c.UpdatedAt

	ev, err := appendEventTx(ctx, tx, c.BoardID, domain.EventCardUpdated,
		domain.CardUpdatedPayload{CardID: c.ID, BoardID: c.BoardID, Updates: changes}, actorID)
	if err != nil {
		return nil, nil, fmt.Errorf("cardRepo.Update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("cardRepo.Update: commit: %w: %w", domain.ErrStorageUnavailable, err)
	}

	return c, ev, nil
}

// Move relocates a card within or across columns, guarded by expectedVersion.
func (r *CardRepo) Move(ctx context.Context, id uuid.UUID, expectedVersion int, columnID uuid.UUID, position int, actorID uuid.UUID) (*domain.Card, *domain.BoardEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("cardRepo.Move: begin: %w: %w", domain.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	row := tx.QueryRow(ctx,
		`UPDATE cards
		 SET column_id  = $3,
		     position   = $4,
		     version    = version + 1,
		     updated_by = $5,
		     updated_at = clock_timestamp()
		 WHERE id = $1 AND version = $2
		 RETURNING `+cardColumns,
		id, expectedVersion, columnID, position, actorID,
	)

	c, err := scanCard(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, r.guardFailure(ctx, tx, id, "cardRepo.Move")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("cardRepo.Move: %w: %w", domain.ErrStorageUnavailable, err)
	}

	ev, err := appendEventTx(ctx, tx, c.BoardID, domain.EventCardMoved,
		domain.CardMovedPayload{
			CardID:   c.ID,
			BoardID:  c.BoardID,
			ColumnID: c.ColumnID,
			Position: c.Position,
			Version:  c.Version,
		}, actorID)
	if err != nil {
		return nil, nil, fmt.Errorf("cardRepo.Move: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("cardRepo.Move: commit: %w: %w", domain.ErrStorageUnavailable, err)
	}

	return c, ev, nil
}

// Delete removes the card and appends card_deleted. Deletion is terminal:
// later operations on the id fail with ErrNotFound.
func (r *CardRepo) Delete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*domain.BoardEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("cardRepo.Delete: begin: %w: %w", domain.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var boardID uuid.UUID
	err = tx.QueryRow(ctx,
		`DELETE FROM cards WHERE id = $1 RETURNING board_id`, id,
	).Scan(&boardID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cardRepo.Delete: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cardRepo.Delete: %w: %w", domain.ErrStorageUnavailable, err)
	}

	ev, err := appendEventTx(ctx, tx, boardID, domain.EventCardDeleted,
		domain.CardDeletedPayload{CardID: id, BoardID: boardID}, actorID)
	if err != nil {
		return nil, fmt.Errorf("cardRepo.Delete: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("cardRepo.Delete: commit: %w: %w", domain.ErrStorageUnavailable, err)
	}

	return ev, nil
}

// guardFailure distinguishes a missing card from a stale version after a
// zero-row compare-and-set. The stale path reports the current version so
// the client can rebase.
func (r *CardRepo) guardFailure(ctx context.Context, tx pgx.Tx, id uuid.UUID, caller string) error {
	var current int
	err := tx.QueryRow(ctx, `SELECT version FROM cards WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", caller, err)
	}

	return fmt.Errorf("%s: %w", caller, &domain.VersionConflictError{CurrentVersion: current})
}

func scanCard(row pgx.Row) (*domain.Card, error) {
	var c domain.Card
	err := row.Scan(
		&c.ID, &c.BoardID, &c.ColumnID, &c.Title, &c.Description, &c.Tags,
		&c.Position, &c.Version, &c.CreatedBy, &c.UpdatedBy,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
