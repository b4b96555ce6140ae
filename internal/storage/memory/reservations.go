package memory

import (
	"context"
	"slices"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

func idempotencyKey(unitID, key string) string {
	return unitID + "|" + key
}

func (s *Store) FindReservationByIdempotencyKey(ctx context.Context, unitID, key string) (*domain.Reservation, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	id, ok := s.idempotency[idempotencyKey(unitID, key)]
	if !ok {
		return nil, nil
	}
	r := s.reservations[id]
	return &r, nil
}

func (s *Store) CreateReservation(ctx context.Context, r domain.Reservation) error {
	tx, unlock := s.lock(ctx)
	defer unlock()

	if _, ok := s.units[r.UnitID]; !ok {
		return domain.ErrUnitNotFound
	}
	if r.IdempotencyKey != "" {
		k := idempotencyKey(r.UnitID, r.IdempotencyKey)
		if _, ok := s.idempotency[k]; ok {
			return domain.ErrIdempotencyConflict
		}
		put(tx, s.idempotency, k, r.ID)
	}
	put(tx, s.reservations, r.ID, r)
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	r, ok := s.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return r, nil
}

// GetReservationForUpdate is GetReservation; the store lock already
// serialises the transaction.
func (s *Store) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	return s.GetReservation(ctx, id)
}

func (s *Store) TransitionReservation(ctx context.Context, id string, from, to domain.ReservationStatus, at time.Time) (bool, error) {
	tx, unlock := s.lock(ctx)
	defer unlock()

	r, ok := s.reservations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = at
	put(tx, s.reservations, id, r)
	return true, nil
}

func (s *Store) ListOverdueReservations(ctx context.Context, unitID string, now time.Time, limit int) ([]domain.Reservation, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	var out []domain.Reservation
	for _, r := range s.reservations {
		if unitID != "" && r.UnitID != unitID {
			continue
		}
		if r.Overdue(now) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.Reservation) int {
		return a.ExpiresAt.Compare(b.ExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetSaleByReservation(ctx context.Context, reservationID string) (*domain.SaleRecord, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	sale, ok := s.sales[reservationID]
	if !ok {
		return nil, nil
	}
	return &sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.SaleRecord) error {
	tx, unlock := s.lock(ctx)
	defer unlock()

	if _, ok := s.sales[sale.ReservationID]; ok {
		return domain.ErrAlreadyConfirmed
	}
	if _, ok := s.reservations[sale.ReservationID]; !ok {
		return domain.ErrReservationNotFound
	}
	put(tx, s.sales, sale.ReservationID, sale)
	return nil
}

// Sales returns every recorded sale. Tests use it to count sale records.
func (s *Store) Sales() []domain.SaleRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.SaleRecord, 0, len(s.sales))
	for _, sale := range s.sales {
		out = append(out, sale)
	}
	return out
}
