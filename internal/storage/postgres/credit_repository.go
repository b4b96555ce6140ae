package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreditRepository persists organizer credit balances, one row per organizer.
type CreditRepository struct {
	db
}

func NewCreditRepository(pool *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{db{pool: pool}}
}

func (r *CreditRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const creditColumns = `organizer_id, credits_total, credits_used, first_free_grant_used, linked_event_id,
free_allocated, free_used, free_expired, free_expired_at, updated_at`

func scanCredit(row pgx.Row) (domain.CreditBalance, error) {
	var b domain.CreditBalance
	var linked *string
	err := row.Scan(&b.OrganizerID, &b.CreditsTotal, &b.CreditsUsed, &b.FirstFreeGrantUsed, &linked,
		&b.FreeAllocated, &b.FreeUsed, &b.FreeExpired, &b.FreeExpiredAt, &b.UpdatedAt)
	if linked != nil {
		b.LinkedEventID = *linked
	}
	return b, err
}

func (r *CreditRepository) GetCreditBalance(ctx context.Context, organizerID string) (domain.CreditBalance, error) {
	b, err := scanCredit(r.queryRow(ctx, `SELECT `+creditColumns+` FROM credit_balances WHERE organizer_id = $1`, organizerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CreditBalance{OrganizerID: organizerID}, nil
		}
		return domain.CreditBalance{}, classify("get credit balance", err)
	}
	return b, nil
}

func (r *CreditRepository) GetCreditBalanceForUpdate(ctx context.Context, organizerID string) (domain.CreditBalance, error) {
	const ensure = `INSERT INTO credit_balances (organizer_id) VALUES ($1) ON CONFLICT (organizer_id) DO NOTHING`
	if _, err := r.exec(ctx, ensure, organizerID); err != nil {
		return domain.CreditBalance{}, classify("ensure credit balance", err)
	}

	b, err := scanCredit(r.queryRow(ctx, `SELECT `+creditColumns+` FROM credit_balances WHERE organizer_id = $1 FOR UPDATE`, organizerID))
	if err != nil {
		return domain.CreditBalance{}, classify("lock credit balance", err)
	}
	return b, nil
}

func (r *CreditRepository) SaveCreditBalance(ctx context.Context, b domain.CreditBalance) error {
	const stmt = `
UPDATE credit_balances SET
	credits_total = $2,
	credits_used = $3,
	first_free_grant_used = $4,
	linked_event_id = NULLIF($5, '')::uuid,
	free_allocated = $6,
	free_used = $7,
	free_expired = $8,
	free_expired_at = $9,
	updated_at = $10
WHERE organizer_id = $1`

	tag, err := r.exec(ctx, stmt,
		b.OrganizerID,
		b.CreditsTotal,
		b.CreditsUsed,
		b.FirstFreeGrantUsed,
		b.LinkedEventID,
		b.FreeAllocated,
		b.FreeUsed,
		b.FreeExpired,
		b.FreeExpiredAt,
		b.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrEventNotFound
		}
		return classify("save credit balance", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save credit balance %s: row missing", b.OrganizerID)
	}
	return nil
}

func (r *CreditRepository) FindCreditBalanceByLinkedEvent(ctx context.Context, eventID string) (*domain.CreditBalance, error) {
	b, err := scanCredit(r.queryRow(ctx, `SELECT `+creditColumns+` FROM credit_balances WHERE linked_event_id = $1 FOR UPDATE`, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("find credit balance by event", err)
	}
	return &b, nil
}

// ListTerminalEventsWithOutstandingFreeCredits lists cancelled or completed
// events whose linked free grant has not been expired yet.
func (r *CreditRepository) ListTerminalEventsWithOutstandingFreeCredits(ctx context.Context, limit int) ([]string, error) {
	const query = `
SELECT e.id
FROM credit_balances c
JOIN events e ON e.id = c.linked_event_id
WHERE e.status IN ('cancelled', 'completed') AND c.free_expired_at IS NULL
ORDER BY e.id
LIMIT $1`

	rows, err := r.query(ctx, query, limit)
	if err != nil {
		return nil, classify("list terminal events", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect terminal events: %w", err)
	}
	return ids, nil
}

func (r *CreditRepository) FirstEventID(ctx context.Context, organizerID string) (string, error) {
	const query = `SELECT id FROM events WHERE organizer_id = $1 ORDER BY created_at, id LIMIT 1`

	var id string
	if err := r.queryRow(ctx, query, organizerID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrEventNotFound
		}
		return "", classify("first event", err)
	}
	return id, nil
}
