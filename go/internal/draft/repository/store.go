// Package repository implements the coordination store adapter on Postgres.
// RunExclusive serializes on the league row with SELECT ... FOR UPDATE, so
// two submissions for the same league can never interleave between the
// admission decision and its write, while different leagues stay parallel.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/marketdraft/go/internal/draft"
)

// db is the subset of pgx shared by pool and transaction.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repos struct {
	leagues *LeagueRepository
	members *MemberRepository
	picks   *PickRepository
	outbox  *OutboxRepository
}

func newRepos(q db) *repos {
	return &repos{
		leagues: &LeagueRepository{q: q},
		members: &MemberRepository{q: q},
		picks:   &PickRepository{q: q},
		outbox:  &OutboxRepository{q: q},
	}
}

func (r *repos) Leagues() draft.LeagueRepository { return r.leagues }
func (r *repos) Members() draft.MemberRepository { return r.members }
func (r *repos) Picks() draft.PickRepository     { return r.picks }
func (r *repos) Outbox() draft.OutboxRepository  { return r.outbox }

// Store implements draft.Store. Reads outside RunExclusive go straight to
// the pool and may be stale; every write path runs inside RunExclusive.
type Store struct {
	pool *pgxpool.Pool
	*repos
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:  pool,
		repos: newRepos(pool),
	}
}

// OutboxRelay exposes the pool-backed outbox repository for the relay,
// which drains and marks rows outside any engine transaction.
func (s *Store) OutboxRelay() *OutboxRepository {
	return s.repos.outbox
}

// RunExclusive runs fn inside a transaction holding a row lock on the
// league. A league that does not exist yet (creation path) takes no lock;
// nothing else can be racing on its fresh id.
func (s *Store) RunExclusive(ctx context.Context, leagueID uuid.UUID, fn func(ctx context.Context, tx draft.Tx) error) error {
	txn, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = txn.Rollback(ctx)
	}()

	var locked uuid.UUID
	err = txn.QueryRow(ctx, `SELECT id FROM leagues WHERE id = $1 FOR UPDATE`, leagueID).Scan(&locked)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lock league row: %w", err)
	}

	if err := fn(ctx, newRepos(txn)); err != nil {
		return err
	}

	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
