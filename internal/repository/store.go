package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxStarter is a DBTX that can open transactions.
type TxStarter interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store hands out repositories bound to either the pool or a transaction.
type Store interface {
	Users() UserRepository
	Customers() CustomerRepository
	Tickets() TicketRepository
	History() TicketHistoryRepository
	Reports() ReportRepository
	// InTx runs fn inside one transaction. It commits when fn returns nil and
	// rolls back otherwise. Nested calls reuse the outer transaction.
	InTx(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	db    DBTX
	pool  TxStarter
	users UserRepository
	custs CustomerRepository
	tix   TicketRepository
	hist  TicketHistoryRepository
	reps  ReportRepository
}

// NewStore builds a Postgres-backed store over a pool.
func NewStore(pool TxStarter) Store {
	return newPGStore(pool, pool)
}

func newPGStore(db DBTX, pool TxStarter) *pgStore {
	return &pgStore{
		db:    db,
		pool:  pool,
		users: NewUserRepository(db),
		custs: NewCustomerRepository(db),
		tix:   NewTicketRepository(db),
		hist:  NewTicketHistoryRepository(db),
		reps:  NewReportRepository(db),
	}
}

func (s *pgStore) Users() UserRepository            { return s.users }
func (s *pgStore) Customers() CustomerRepository    { return s.custs }
func (s *pgStore) Tickets() TicketRepository        { return s.tix }
func (s *pgStore) History() TicketHistoryRepository { return s.hist }
func (s *pgStore) Reports() ReportRepository        { return s.reps }

func (s *pgStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(newPGStore(tx, nil)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", translate(err))
	}
	return nil
}
