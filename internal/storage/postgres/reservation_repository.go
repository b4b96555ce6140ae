package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationRepository stores reservations and the sales they turn into.
type ReservationRepository struct {
	db
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{db{pool: pool}}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const reservationColumns = `id, unit_id, event_id, quantity, status, COALESCE(idempotency_key, ''), created_at, expires_at, updated_at`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(&res.ID, &res.UnitID, &res.EventID, &res.Quantity, &res.Status,
		&res.IdempotencyKey, &res.CreatedAt, &res.ExpiresAt, &res.UpdatedAt)
	return res, err
}

func (r *ReservationRepository) FindReservationByIdempotencyKey(ctx context.Context, unitID, key string) (*domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE unit_id = $1 AND idempotency_key = $2`

	res, err := scanReservation(r.queryRow(ctx, query, unitID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("find reservation by idempotency key", err)
	}
	return &res, nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, unit_id, event_id, quantity, status, idempotency_key, created_at, expires_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.UnitID,
		res.EventID,
		res.Quantity,
		res.Status,
		res.IdempotencyKey,
		res.CreatedAt,
		res.ExpiresAt,
		res.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUnitNotFound
		}
		return classify("create reservation", err)
	}
	return nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	return r.getReservation(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
}

func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	return r.getReservation(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
}

func (r *ReservationRepository) getReservation(ctx context.Context, query, id string) (domain.Reservation, error) {
	res, err := scanReservation(r.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, classify("get reservation", err)
	}
	return res, nil
}

// TransitionReservation only updates rows still in status from.
func (r *ReservationRepository) TransitionReservation(ctx context.Context, id string, from, to domain.ReservationStatus, at time.Time) (bool, error) {
	const stmt = `UPDATE reservations SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`

	tag, err := r.exec(ctx, stmt, id, from, to, at)
	if err != nil {
		return false, classify("transition reservation", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReservationRepository) ListOverdueReservations(ctx context.Context, unitID string, now time.Time, limit int) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE status = 'held' AND expires_at <= $1 AND ($2 = '' OR unit_id::text = $2)
ORDER BY expires_at
LIMIT $3`

	rows, err := r.query(ctx, query, now, unitID, limit)
	if err != nil {
		return nil, classify("list overdue reservations", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return out, nil
}

func (r *ReservationRepository) GetSaleByReservation(ctx context.Context, reservationID string) (*domain.SaleRecord, error) {
	const query = `
SELECT id, reservation_id, unit_id, quantity, buyer_name, buyer_email, amount_cents, payment_reference, confirmed_at
FROM sales
WHERE reservation_id = $1`

	var s domain.SaleRecord
	err := r.queryRow(ctx, query, reservationID).Scan(
		&s.ID, &s.ReservationID, &s.UnitID, &s.Quantity,
		&s.Buyer.Name, &s.Buyer.Email, &s.AmountCents, &s.PaymentReference, &s.ConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get sale", err)
	}
	return &s, nil
}

func (r *ReservationRepository) CreateSale(ctx context.Context, sale domain.SaleRecord) error {
	const stmt = `
INSERT INTO sales (id, reservation_id, unit_id, quantity, buyer_name, buyer_email, amount_cents, payment_reference, confirmed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		sale.ID,
		sale.ReservationID,
		sale.UnitID,
		sale.Quantity,
		sale.Buyer.Name,
		sale.Buyer.Email,
		sale.AmountCents,
		sale.PaymentReference,
		sale.ConfirmedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyConfirmed
		}
		if isForeignKeyViolation(err) {
			return domain.ErrReservationNotFound
		}
		return classify("create sale", err)
	}
	return nil
}
