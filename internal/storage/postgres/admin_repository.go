package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepository struct {
	db
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db{pool: pool}}
}

func (r *AdminRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *AdminRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	const stmt = `
INSERT INTO events (id, organizer_id, name, starts_at, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.exec(ctx, stmt, event.ID, event.OrganizerID, event.Name, event.StartsAt, event.Status, event.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

const eventColumns = `id, organizer_id, name, starts_at, status, created_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.StartsAt, &e.Status, &e.CreatedAt)
	return e, err
}

func (r *AdminRepository) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	e, err := scanEvent(r.queryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrEventNotFound
		}
		return domain.Event{}, classify("get event", err)
	}
	return e, nil
}

func (r *AdminRepository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	const query = `
SELECT ` + eventColumns + `
FROM events
ORDER BY starts_at ASC, id ASC`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate events: %w", rows.Err())
	}
	return events, nil
}

func (r *AdminRepository) SetEventStatus(ctx context.Context, eventID string, status domain.EventStatus) error {
	tag, err := r.exec(ctx, `UPDATE events SET status = $2 WHERE id = $1`, eventID, status)
	if err != nil {
		return classify("set event status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *AdminRepository) CreateUnit(ctx context.Context, unit domain.SellableUnit) error {
	const stmt = `
INSERT INTO sellable_units (id, event_id, name, price_cents, capacity_total, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.exec(ctx, stmt, unit.ID, unit.EventID, unit.Name, unit.PriceCents, unit.CapacityTotal, unit.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrUnitAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return domain.ErrEventNotFound
		}
		return fmt.Errorf("create unit: %w", err)
	}
	return nil
}

func (r *AdminRepository) ListUnits(ctx context.Context, eventID string) ([]domain.SellableUnit, error) {
	const query = `
SELECT ` + unitColumns + `
FROM sellable_units
WHERE event_id = $1
ORDER BY name ASC`
	rows, err := r.query(ctx, query, eventID)
	if err != nil {
		return nil, classify("list units", err)
	}
	defer rows.Close()

	var units []domain.SellableUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate units: %w", rows.Err())
	}
	return units, nil
}

// lockUnit takes the unit row lock, waiting for any in-flight ledger change.
func (r *AdminRepository) lockUnit(ctx context.Context, unitID string) (domain.SellableUnit, error) {
	u, err := scanUnit(r.queryRow(ctx, `SELECT `+unitColumns+` FROM sellable_units WHERE id = $1 FOR UPDATE`, unitID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SellableUnit{}, domain.ErrUnitNotFound
		}
		return domain.SellableUnit{}, classify("lock unit", err)
	}
	return u, nil
}

func (r *AdminRepository) UpdateUnitCapacity(ctx context.Context, unitID string, capacity int) error {
	return withTx(ctx, r.pool, func(txCtx context.Context) error {
		if _, err := r.lockUnit(txCtx, unitID); err != nil {
			return err
		}

		var referenced bool
		if err := r.queryRow(txCtx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE unit_id = $1)`, unitID).Scan(&referenced); err != nil {
			return classify("check reservations", err)
		}
		if referenced {
			return domain.ErrCapacityLocked
		}

		if _, err := r.exec(txCtx, `UPDATE sellable_units SET capacity_total = $2 WHERE id = $1`, unitID, capacity); err != nil {
			return classify("update capacity", err)
		}
		return nil
	})
}

func (r *AdminRepository) DeleteUnit(ctx context.Context, unitID string) error {
	return withTx(ctx, r.pool, func(txCtx context.Context) error {
		u, err := r.lockUnit(txCtx, unitID)
		if err != nil {
			return err
		}
		if u.Sold > 0 {
			return domain.ErrUnitHasSales
		}
		if u.Reserved > 0 {
			return domain.ErrUnitHasHolds
		}
		if _, err := r.exec(txCtx, `DELETE FROM sellable_units WHERE id = $1`, unitID); err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrUnitHasSales
			}
			return classify("delete unit", err)
		}
		return nil
	})
}
