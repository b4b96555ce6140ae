package memory

import (
	"context"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

func (s *Store) GetAvailable(ctx context.Context, unitID string) (domain.Availability, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	u, ok := s.units[unitID]
	if !ok {
		return domain.Availability{}, domain.ErrUnitNotFound
	}
	return u.Availability(), nil
}

func (s *Store) TryReserve(ctx context.Context, unitID string, quantity int) (domain.SellableUnit, error) {
	if !domain.ValidQuantity(quantity) {
		return domain.SellableUnit{}, domain.ErrInvalidQuantity
	}
	tx, unlock := s.lock(ctx)
	defer unlock()

	u, ok := s.units[unitID]
	if !ok {
		return domain.SellableUnit{}, domain.ErrUnitNotFound
	}
	if quantity > u.CapacityTotal-u.Reserved-u.Sold {
		return domain.SellableUnit{}, domain.ErrInsufficientCapacity
	}
	u.Reserved += quantity
	put(tx, s.units, unitID, u)
	return u, nil
}

func (s *Store) ReleaseReservation(ctx context.Context, unitID string, quantity int) (domain.LedgerRelease, error) {
	if !domain.ValidQuantity(quantity) {
		return domain.LedgerRelease{}, domain.ErrInvalidQuantity
	}
	tx, unlock := s.lock(ctx)
	defer unlock()

	u, ok := s.units[unitID]
	if !ok {
		return domain.LedgerRelease{}, domain.ErrUnitNotFound
	}
	released := min(quantity, u.Reserved)
	u.Reserved -= released
	put(tx, s.units, unitID, u)
	return domain.LedgerRelease{
		Unit:      u,
		Requested: quantity,
		Released:  released,
		Clamped:   released < quantity,
	}, nil
}

func (s *Store) ConfirmReservation(ctx context.Context, unitID string, quantity int) (domain.SellableUnit, error) {
	if !domain.ValidQuantity(quantity) {
		return domain.SellableUnit{}, domain.ErrInvalidQuantity
	}
	tx, unlock := s.lock(ctx)
	defer unlock()

	u, ok := s.units[unitID]
	if !ok {
		return domain.SellableUnit{}, domain.ErrUnitNotFound
	}
	if u.Reserved < quantity {
		return domain.SellableUnit{}, domain.ErrLedgerInvariant
	}
	u.Reserved -= quantity
	u.Sold += quantity
	put(tx, s.units, unitID, u)
	return u, nil
}
