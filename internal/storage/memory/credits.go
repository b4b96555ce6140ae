package memory

import (
	"context"
	"slices"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

func (s *Store) GetCreditBalance(ctx context.Context, organizerID string) (domain.CreditBalance, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	b, ok := s.credits[organizerID]
	if !ok {
		return domain.CreditBalance{OrganizerID: organizerID}, nil
	}
	return b, nil
}

func (s *Store) GetCreditBalanceForUpdate(ctx context.Context, organizerID string) (domain.CreditBalance, error) {
	tx, unlock := s.lock(ctx)
	defer unlock()

	b, ok := s.credits[organizerID]
	if !ok {
		b = domain.CreditBalance{OrganizerID: organizerID}
		put(tx, s.credits, organizerID, b)
	}
	return b, nil
}

func (s *Store) SaveCreditBalance(ctx context.Context, b domain.CreditBalance) error {
	tx, unlock := s.lock(ctx)
	defer unlock()

	if b.CreditsUsed > b.CreditsTotal || b.CreditsUsed < 0 {
		return domain.ErrLedgerInvariant
	}
	put(tx, s.credits, b.OrganizerID, b)
	return nil
}

func (s *Store) FindCreditBalanceByLinkedEvent(ctx context.Context, eventID string) (*domain.CreditBalance, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	for _, b := range s.credits {
		if b.LinkedEventID == eventID {
			return &b, nil
		}
	}
	return nil, nil
}

func (s *Store) ListTerminalEventsWithOutstandingFreeCredits(ctx context.Context, limit int) ([]string, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	var ids []string
	for _, b := range s.credits {
		if b.LinkedEventID == "" || b.FreeExpiredAt != nil {
			continue
		}
		if ev, ok := s.events[b.LinkedEventID]; ok && ev.Status.Terminal() {
			ids = append(ids, ev.ID)
		}
	}
	slices.Sort(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// FirstEventID returns the organizer's earliest created event.
func (s *Store) FirstEventID(ctx context.Context, organizerID string) (string, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	var first *domain.Event
	for _, ev := range s.events {
		if ev.OrganizerID != organizerID {
			continue
		}
		if first == nil || ev.CreatedAt.Before(first.CreatedAt) ||
			(ev.CreatedAt.Equal(first.CreatedAt) && ev.ID < first.ID) {
			e := ev
			first = &e
		}
	}
	if first == nil {
		return "", domain.ErrEventNotFound
	}
	return first.ID, nil
}
