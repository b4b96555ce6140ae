package app

import (
	"context"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

// InventoryService answers availability queries, optionally through a cache.
type InventoryService struct {
	ledger InventoryLedger
	opts   options
}

func NewInventoryService(ledger InventoryLedger, opts ...Option) *InventoryService {
	return &InventoryService{ledger: ledger, opts: newOptions(opts)}
}

func (s *InventoryService) Availability(ctx context.Context, unitID string) (domain.Availability, error) {
	if unitID == "" {
		return domain.Availability{}, domain.ErrInvalidID
	}

	if a, ok, err := s.opts.cache.Get(ctx, unitID); err != nil {
		s.opts.log.WithError(err).WithField("unit_id", unitID).Warn("availability cache read failed")
	} else if ok {
		return a, nil
	}

	a, err := s.ledger.GetAvailable(ctx, unitID)
	if err != nil {
		return domain.Availability{}, err
	}
	if err := s.opts.cache.Set(ctx, a); err != nil {
		s.opts.log.WithError(err).WithField("unit_id", unitID).Warn("availability cache write failed")
	}
	return a, nil
}
