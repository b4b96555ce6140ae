package app

import (
	"context"
	"time"

	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/sirupsen/logrus"
)

// TerminalCreditExpirer expires free credits linked to events that already
// reached a terminal status.
type TerminalCreditExpirer interface {
	ExpireTerminalEventCredits(ctx context.Context) (int, error)
}

// ExpiryService reclaims capacity from overdue holds.
type ExpiryService struct {
	repo    ReservationRepository
	ledger  InventoryLedger
	credits TerminalCreditExpirer
	clock   clock.Clock
	opts    options
}

// NewExpiryService builds the expiry service. credits may be nil.
func NewExpiryService(repo ReservationRepository, ledger InventoryLedger, credits TerminalCreditExpirer, clk clock.Clock, opts ...Option) *ExpiryService {
	return &ExpiryService{
		repo:    repo,
		ledger:  ledger,
		credits: credits,
		clock:   clk,
		opts:    newOptions(opts),
	}
}

// SweepExpired expires up to one batch of overdue HELD reservations across
// all units and returns the ones it expired.
func (s *ExpiryService) SweepExpired(ctx context.Context) ([]domain.Reservation, error) {
	return s.expireOverdue(ctx, "")
}

// ExpireUnitHolds is the lazy path: it expires overdue holds of one unit.
func (s *ExpiryService) ExpireUnitHolds(ctx context.Context, unitID string) (int, error) {
	expired, err := s.expireOverdue(ctx, unitID)
	return len(expired), err
}

// ExpireTerminalEventCredits is the polling half of free-credit expiry.
func (s *ExpiryService) ExpireTerminalEventCredits(ctx context.Context) (int, error) {
	if s.credits == nil {
		return 0, nil
	}
	return s.credits.ExpireTerminalEventCredits(ctx)
}

func (s *ExpiryService) expireOverdue(ctx context.Context, unitID string) ([]domain.Reservation, error) {
	now := s.clock.Now()
	overdue, err := s.repo.ListOverdueReservations(ctx, unitID, now, s.opts.sweepBatchSize)
	if err != nil {
		return nil, err
	}

	var expired []domain.Reservation
	touched := make(map[string]struct{})
	for _, r := range overdue {
		ok, err := s.expireOne(ctx, r.ID, now)
		if err != nil {
			if ctx.Err() != nil {
				return expired, ctx.Err()
			}
			s.opts.log.WithError(err).WithField("reservation_id", r.ID).Warn("expire reservation failed")
			continue
		}
		if !ok {
			continue
		}
		r.Status = domain.ReservationExpired
		r.UpdatedAt = now
		expired = append(expired, r)
		touched[r.UnitID] = struct{}{}

		s.opts.log.WithFields(logrus.Fields{
			"reservation_id": r.ID,
			"unit_id":        r.UnitID,
			"quantity":       r.Quantity,
		}).Info("reservation expired")
	}

	for id := range touched {
		invalidate(ctx, s.opts, id)
	}
	return expired, nil
}

// expireOne re-reads the reservation under lock so a hold confirmed or
// cancelled since it was listed is left alone.
func (s *ExpiryService) expireOne(ctx context.Context, reservationID string, now time.Time) (bool, error) {
	var expired bool
	err := retryTransient(ctx, s.opts.reserveAttempts, s.opts.log, "expire", func() error {
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			r, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
			if err != nil {
				return err
			}
			if !r.Overdue(now) {
				expired = false
				return nil
			}
			expired, err = releaseHold(txCtx, s.repo, s.ledger, s.opts.log, r, domain.ReservationExpired, now)
			return err
		})
	})
	return expired, err
}
