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

// EventRepo is the durable per-board append log. Sequence assignment and
// event storage share one transaction: the appender bumps the board's
// last_sequence counter under its row lock, so concurrent appends to the
// same board serialize and the committed sequences stay gapless, while
// unrelated boards never contend.
type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) Append(ctx context.Context, boardID uuid.UUID, eventType domain.EventType, payload any, actorID uuid.UUID) (*domain.BoardEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventRepo.Append: begin: %w: %w", domain.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	ev, err := appendEventTx(ctx, tx, boardID, eventType, payload, actorID)
	if err != nil {
		return nil, fmt.Errorf("eventRepo.Append: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("eventRepo.Append: commit: %w: %w", domain.ErrStorageUnavailable, err)
	}

	return ev, nil
}

// appendEventTx validates the payload, assigns the next sequence for the
// board and inserts the event, all inside the caller's transaction. Entity
// repos call this so guard, write and append commit or roll back together.
func appendEventTx(ctx context.Context, tx pgx.Tx, boardID uuid.UUID, eventType domain.EventType, payload any, actorID uuid.UUID) (*domain.BoardEvent, error) {
	raw, err := domain.MarshalPayload(eventType, payload)
	if err != nil {
		return nil, err
	}

	var seq int64
	err = tx.QueryRow(ctx,
		`UPDATE boards SET last_sequence = last_sequence + 1 WHERE id = $1 RETURNING last_sequence`,
		boardID,
	).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("board %s: %w", boardID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("next sequence: %w: %w", domain.ErrStorageUnavailable, err)
	}

	ev := &domain.BoardEvent{
		ID:       uuid.New(),
		BoardID:  boardID,
		Sequence: seq,
		Type:     eventType,
		Payload:  raw,
		ActorID:  actorID,
	}

	// clock_timestamp() runs after the board row lock is acquired, keeping
	// commit timestamps non-decreasing in sequence order.
	err = tx.QueryRow(ctx,
		`INSERT INTO board_events (id, board_id, sequence, type, payload, actor_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, clock_timestamp())
		 RETURNING created_at`,
		ev.ID, ev.BoardID, ev.Sequence, ev.Type, ev.Payload, ev.ActorID,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w: %w", domain.ErrStorageUnavailable, err)
	}

	return ev, nil
}

func (r *EventRepo) ListAfter(ctx context.Context, boardID uuid.UUID, afterSequence int64, limit int) ([]*domain.BoardEvent, error) {
	if limit <= 0 || limit > domain.ReplayLimit {
		limit = domain.ReplayLimit
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, board_id, sequence, type, payload, actor_id, created_at
		 FROM board_events
		 WHERE board_id = $1 AND sequence > $2
		 ORDER BY sequence ASC
		 LIMIT $3`,
		boardID, afterSequence, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("eventRepo.ListAfter: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows, "eventRepo.ListAfter")
}

func (r *EventRepo) ListRecent(ctx context.Context, boardID uuid.UUID, limit int) ([]*domain.BoardEvent, error) {
	if limit <= 0 || limit > domain.RecentLimit {
		limit = domain.RecentLimit
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, board_id, sequence, type, payload, actor_id, created_at
		 FROM board_events
		 WHERE board_id = $1
		 ORDER BY sequence DESC
		 LIMIT $2`,
		boardID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("eventRepo.ListRecent: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows, "eventRepo.ListRecent")
}

func scanEvents(rows pgx.Rows, caller string) ([]*domain.BoardEvent, error) {
	var events []*domain.BoardEvent
	for rows.Next() {
		var ev domain.BoardEvent
		if err := rows.Scan(
			&ev.ID, &ev.BoardID, &ev.Sequence, &ev.Type, &ev.Payload,
			&ev.ActorID, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return events, nil
}
