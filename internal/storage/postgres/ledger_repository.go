package postgres

import (
	"context"
	"errors"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepository keeps reserved/sold on the sellable_units row. Each
// mutation is a single conditional UPDATE, so the row lock taken by that
// statement is the serialization point per unit.
type LedgerRepository struct {
	db
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db{pool: pool}}
}

func (r *LedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const unitColumns = `id, event_id, name, price_cents, capacity_total, reserved, sold, created_at`

func scanUnit(row pgx.Row) (domain.SellableUnit, error) {
	var u domain.SellableUnit
	err := row.Scan(&u.ID, &u.EventID, &u.Name, &u.PriceCents, &u.CapacityTotal, &u.Reserved, &u.Sold, &u.CreatedAt)
	return u, err
}

func (r *LedgerRepository) GetUnit(ctx context.Context, unitID string) (domain.SellableUnit, error) {
	u, err := scanUnit(r.queryRow(ctx, `SELECT `+unitColumns+` FROM sellable_units WHERE id = $1`, unitID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SellableUnit{}, domain.ErrUnitNotFound
		}
		return domain.SellableUnit{}, classify("get unit", err)
	}
	return u, nil
}

func (r *LedgerRepository) GetAvailable(ctx context.Context, unitID string) (domain.Availability, error) {
	u, err := r.GetUnit(ctx, unitID)
	if err != nil {
		return domain.Availability{}, err
	}
	return u.Availability(), nil
}

func (r *LedgerRepository) TryReserve(ctx context.Context, unitID string, quantity int) (domain.SellableUnit, error) {
	if !domain.ValidQuantity(quantity) {
		return domain.SellableUnit{}, domain.ErrInvalidQuantity
	}
	const stmt = `
UPDATE sellable_units
SET reserved = reserved + $2
WHERE id = $1 AND $2 <= capacity_total - reserved - sold
RETURNING ` + unitColumns

	u, err := scanUnit(r.queryRow(ctx, stmt, unitID, quantity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SellableUnit{}, r.missOr(ctx, unitID, domain.ErrInsufficientCapacity)
		}
		return domain.SellableUnit{}, classify("try reserve", err)
	}
	return u, nil
}

// ReleaseReservation returns quantity to the pool. reserved never goes below
// zero; when it would, the release is clamped and reported.
func (r *LedgerRepository) ReleaseReservation(ctx context.Context, unitID string, quantity int) (domain.LedgerRelease, error) {
	if !domain.ValidQuantity(quantity) {
		return domain.LedgerRelease{}, domain.ErrInvalidQuantity
	}
	const stmt = `
UPDATE sellable_units u
SET reserved = GREATEST(u.reserved - $2, 0)
FROM (SELECT id, reserved FROM sellable_units WHERE id = $1 FOR UPDATE) prev
WHERE u.id = prev.id
RETURNING u.id, u.event_id, u.name, u.price_cents, u.capacity_total, u.reserved, u.sold, u.created_at, prev.reserved`

	var u domain.SellableUnit
	var before int
	err := r.queryRow(ctx, stmt, unitID, quantity).
		Scan(&u.ID, &u.EventID, &u.Name, &u.PriceCents, &u.CapacityTotal, &u.Reserved, &u.Sold, &u.CreatedAt, &before)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LedgerRelease{}, domain.ErrUnitNotFound
		}
		return domain.LedgerRelease{}, classify("release reservation", err)
	}

	released := before - u.Reserved
	return domain.LedgerRelease{
		Unit:      u,
		Requested: quantity,
		Released:  released,
		Clamped:   released < quantity,
	}, nil
}

// ConfirmReservation moves quantity from reserved to sold. It fails with
// ErrLedgerInvariant when less than quantity is reserved.
func (r *LedgerRepository) ConfirmReservation(ctx context.Context, unitID string, quantity int) (domain.SellableUnit, error) {
	if !domain.ValidQuantity(quantity) {
		return domain.SellableUnit{}, domain.ErrInvalidQuantity
	}
	const stmt = `
UPDATE sellable_units
SET reserved = reserved - $2, sold = sold + $2
WHERE id = $1 AND reserved >= $2
RETURNING ` + unitColumns

	u, err := scanUnit(r.queryRow(ctx, stmt, unitID, quantity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SellableUnit{}, r.missOr(ctx, unitID, domain.ErrLedgerInvariant)
		}
		return domain.SellableUnit{}, classify("confirm reservation", err)
	}
	return u, nil
}

// missOr tells a missing unit apart from a failed guard.
func (r *LedgerRepository) missOr(ctx context.Context, unitID string, guardErr error) error {
	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sellable_units WHERE id = $1)`, unitID).Scan(&exists); err != nil {
		return classify("check unit", err)
	}
	if !exists {
		return domain.ErrUnitNotFound
	}
	return guardErr
}
