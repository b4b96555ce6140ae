package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the repositories over one pool so a single value satisfies
// every storage port. They share the transaction carried in the context.
type Store struct {
	*LedgerRepository
	*ReservationRepository
	*CreditRepository
	*AdminRepository

	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		LedgerRepository:      NewLedgerRepository(pool),
		ReservationRepository: NewReservationRepository(pool),
		CreditRepository:      NewCreditRepository(pool),
		AdminRepository:       NewAdminRepository(pool),
		pool:                  pool,
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.pool, fn)
}
