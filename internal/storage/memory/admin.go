package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

func (s *Store) CreateEvent(ctx context.Context, event domain.Event) error {
	tx, unlock := s.lock(ctx)
	defer unlock()

	put(tx, s.events, event.ID, event)
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	ev, ok := s.events[eventID]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	out := make([]domain.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	slices.SortFunc(out, func(a, b domain.Event) int {
		if c := a.StartsAt.Compare(b.StartsAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) SetEventStatus(ctx context.Context, eventID string, status domain.EventStatus) error {
	tx, unlock := s.lock(ctx)
	defer unlock()

	ev, ok := s.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	ev.Status = status
	put(tx, s.events, eventID, ev)
	return nil
}

func (s *Store) CreateUnit(ctx context.Context, unit domain.SellableUnit) error {
	tx, unlock := s.lock(ctx)
	defer unlock()

	if _, ok := s.events[unit.EventID]; !ok {
		return domain.ErrEventNotFound
	}
	for _, u := range s.units {
		if u.EventID == unit.EventID && u.Name == unit.Name {
			return domain.ErrUnitAlreadyExists
		}
	}
	put(tx, s.units, unit.ID, unit)
	return nil
}

func (s *Store) GetUnit(ctx context.Context, unitID string) (domain.SellableUnit, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	u, ok := s.units[unitID]
	if !ok {
		return domain.SellableUnit{}, domain.ErrUnitNotFound
	}
	return u, nil
}

func (s *Store) ListUnits(ctx context.Context, eventID string) ([]domain.SellableUnit, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	var out []domain.SellableUnit
	for _, u := range s.units {
		if u.EventID == eventID {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b domain.SellableUnit) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) UpdateUnitCapacity(ctx context.Context, unitID string, capacity int) error {
	tx, unlock := s.lock(ctx)
	defer unlock()

	u, ok := s.units[unitID]
	if !ok {
		return domain.ErrUnitNotFound
	}
	for _, r := range s.reservations {
		if r.UnitID == unitID {
			return domain.ErrCapacityLocked
		}
	}
	u.CapacityTotal = capacity
	put(tx, s.units, unitID, u)
	return nil
}

func (s *Store) DeleteUnit(ctx context.Context, unitID string) error {
	tx, unlock := s.lock(ctx)
	defer unlock()

	u, ok := s.units[unitID]
	if !ok {
		return domain.ErrUnitNotFound
	}
	if u.Sold > 0 {
		return domain.ErrUnitHasSales
	}
	if u.Reserved > 0 {
		return domain.ErrUnitHasHolds
	}
	for id, r := range s.reservations {
		if r.UnitID != unitID {
			continue
		}
		if r.IdempotencyKey != "" {
			remove(tx, s.idempotency, idempotencyKey(r.UnitID, r.IdempotencyKey))
		}
		remove(tx, s.reservations, id)
	}
	remove(tx, s.units, unitID)
	return nil
}
