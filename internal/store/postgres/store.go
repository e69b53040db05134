package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/collabboard/collabboard/internal/domain"
)

type Store struct {
	pool       *pgxpool.Pool
	users      *UserRepo
	workspaces *WorkspaceRepo
	boards     *BoardRepo
	columns    *ColumnRepo
	cards      *CardRepo
	events     *EventRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:       pool,
		users:      NewUserRepo(pool),
		workspaces: NewWorkspaceRepo(pool),
		boards:     NewBoardRepo(pool),
		columns:    NewColumnRepo(pool),
		cards:      NewCardRepo(pool),
		events:     NewEventRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Users() domain.UserRepository           { return s.users }
func (s *Store) Workspaces() domain.WorkspaceRepository { return s.workspaces }
func (s *Store) Boards() domain.BoardRepository         { return s.boards }
func (s *Store) Columns() domain.ColumnRepository       { return s.columns }
func (s *Store) Cards() domain.CardRepository           { return s.cards }
func (s *Store) Events() domain.EventLog                { return s.events }
func (s *Store) Access() domain.AccessChecker           { return s.boards }
