// Package boardsync implements the commit pipeline for board mutations:
// optimistic admission against the entity store, durable event-log append,
// then best-effort fan-out of the committed event to every live subscriber.
package boardsync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/collabboard/collabboard/internal/api/ws"
	"github.com/collabboard/collabboard/internal/domain"
	redisstore "github.com/collabboard/collabboard/internal/store/redis"
)

// Bus broadcasts committed events across server processes.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Engine admits and commits board mutations. Each operation authorizes the
// actor, commits the entity write together with its event (one transaction,
// handled by the repositories), and publishes the committed event. Publish
// failures never fail the commit: the event is durable and subscribers
// recover it via replay.
type Engine struct {
	cards   domain.CardRepository
	columns domain.ColumnRepository
	access  domain.AccessChecker
	bus     Bus
}

func NewEngine(cards domain.CardRepository, columns domain.ColumnRepository, access domain.AccessChecker, bus Bus) *Engine {
	return &Engine{
		cards:   cards,
		columns: columns,
		access:  access,
		bus:     bus,
	}
}

// CreateCard adds a card to a column. Position < 0 places it at the end of
// the column.
func (e *Engine) CreateCard(ctx context.Context, actorID uuid.UUID, c *domain.Card) (*domain.Card, error) {
	if err := e.authorize(ctx, actorID, c.BoardID); err != nil {
		return nil, fmt.Errorf("boardsync.Engine.CreateCard: %w", err)
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedBy = actorID
	c.UpdatedBy = actorID

	ev, err := e.cards.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("boardsync.Engine.CreateCard: %w", err)
	}

	e.publish(ctx, ev)
	return c, nil
}

// UpdateCard applies a content change guarded by expectedVersion. A stale
// version fails with *domain.VersionConflictError carrying the current
// version; the caller re-reads and retries, the server never auto-merges.
func (e *Engine) UpdateCard(ctx context.Context, actorID, cardID uuid.UUID, expectedVersion int, changes domain.CardChanges) (*domain.Card, error) {
	card, err := e.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("boardsync.Engine.UpdateCard: %w", err)
	}
	if err := e.authorize(ctx, actorID, card.BoardID); err != nil {
		return nil, fmt.Errorf("boardsync.Engine.UpdateCard: %w", err)
	}

	updated, ev, err := e.cards.Update(ctx, cardID, expectedVersion, changes, actorID)
	if err != nil {
		return nil, fmt.Errorf("boardsync.Engine.UpdateCard: %w", err)
	}

	e.publish(ctx, ev)
	return updated, nil
}

// MoveCard relocates a card, guarded by expectedVersion.
func (e *Engine) MoveCard(ctx context.Context, actorID, cardID uuid.UUID, expectedVersion int, columnID uuid.UUID, position int) (*domain.Card, error) {
	card, err := e.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("boardsync.Engine.MoveCard: %w", err)
	}
	if err := e.authorize(ctx, actorID, card.BoardID); err != nil {
		return nil, fmt.Errorf("boardsync.Engine.MoveCard: %w", err)
	}

	moved, ev, err := e.cards.Move(ctx, cardID, expectedVersion, columnID, position, actorID)
	if err != nil {
		return nil, fmt.Errorf("boardsync.Engine.MoveCard: %w", err)
	}

	e.publish(ctx, ev)
	return moved, nil
}

// DeleteCard removes a card. Terminal: the id cannot be mutated afterwards.
func (e *Engine) DeleteCard(ctx context.Context, actorID, cardID uuid.UUID) error {
	card, err := e.cards.GetByID(ctx, cardID)
	if err != nil {
		return fmt.Errorf("boardsync.Engine.DeleteCard: %w", err)
	}
	if err := e.authorize(ctx, actorID, card.BoardID); err != nil {
		return fmt.Errorf("boardsync.Engine.DeleteCard: %w", err)
	}

	ev, err := e.cards.Delete(ctx, cardID, actorID)
	if err != nil {
		return fmt.Errorf("boardsync.Engine.DeleteCard: %w", err)
	}

	e.publish(ctx, ev)
	return nil
}

// CreateColumn adds a column. Position < 0 appends it to the board.
func (e *Engine) CreateColumn(ctx context.Context, actorID uuid.UUID, c *domain.Column) (*domain.Column, error) {
	if err := e.authorize(ctx, actorID, c.BoardID); err != nil {
		return nil, fmt.Errorf("boardsync.Engine.CreateColumn: %w", err)
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	ev, err := e.columns.Create(ctx, c, actorID)
	if err != nil {
		return nil, fmt.Errorf("boardsync.Engine.CreateColumn: %w", err)
	}

	e.publish(ctx, ev)
	return c, nil
}

func (e *Engine) RenameColumn(ctx context.Context, actorID, columnID uuid.UUID, name string) (*domain.Column, error) {
	col, err := e.columns.GetByID(ctx, columnID)
	if err != nil {
		return nil, fmt.Errorf("boardsync.Engine.RenameColumn: %w", err)
	}
	if err := e.authorize(ctx, actorID, col.BoardID); err != nil {
		return nil, fmt.Errorf("boardsync.Engine.RenameColumn: %w", err)
	}

	renamed, ev, err := e.columns.Rename(ctx, columnID, name, actorID)
	if err != nil {
		return nil, fmt.Errorf("boardsync.Engine.RenameColumn: %w", err)
	}

	e.publish(ctx, ev)
	return renamed, nil
}

func (e *Engine) DeleteColumn(ctx context.Context, actorID, columnID uuid.UUID) error {
	col, err := e.columns.GetByID(ctx, columnID)
	if err != nil {
		return fmt.Errorf("boardsync.Engine.DeleteColumn: %w", err)
	}
	if err := e.authorize(ctx, actorID, col.BoardID); err != nil {
		return fmt.Errorf("boardsync.Engine.DeleteColumn: %w", err)
	}

	ev, err := e.columns.Delete(ctx, columnID, actorID)
	if err != nil {
		return fmt.Errorf("boardsync.Engine.DeleteColumn: %w", err)
	}

	e.publish(ctx, ev)
	return nil
}

func (e *Engine) authorize(ctx context.Context, actorID, boardID uuid.UUID) error {
	ok, err := e.access.HasBoardAccess(ctx, actorID, boardID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrForbidden
	}
	return nil
}

// publish fans out a committed event. Best-effort: on failure the event is
// already durable and reachable through replay, so the error is logged and
// swallowed.
func (e *Engine) publish(ctx context.Context, ev *domain.BoardEvent) {
	frame, err := ws.EncodeEvent(ev)
	if err != nil {
		log.Error().Err(err).
			Str("board_id", ev.BoardID.String()).
			Int64("sequence", ev.Sequence).
			Msg("boardsync: encode committed event")
		return
	}

	if err := e.bus.Publish(ctx, redisstore.BoardChannel(ev.BoardID), frame); err != nil {
		log.Warn().Err(err).
			Str("board_id", ev.BoardID.String()).
			Int64("sequence", ev.Sequence).
			Str("type", string(ev.Type)).
			Msg("boardsync: fan-out failed, event recoverable via replay")
	}
}
