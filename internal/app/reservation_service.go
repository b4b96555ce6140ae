package app

import (
	"context"
	"errors"
	"time"

	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ReservationService issues and cancels time-limited holds on unit capacity.
type ReservationService struct {
	repo   ReservationRepository
	ledger InventoryLedger
	expiry *ExpiryService
	clock  clock.Clock
	opts   options
}

// NewReservationService wires the reservation manager. expiry may be nil, in
// which case overdue holds are only reclaimed by the sweeper.
func NewReservationService(repo ReservationRepository, ledger InventoryLedger, expiry *ExpiryService, clk clock.Clock, opts ...Option) *ReservationService {
	return &ReservationService{
		repo:   repo,
		ledger: ledger,
		expiry: expiry,
		clock:  clk,
		opts:   newOptions(opts),
	}
}

type ReserveInput struct {
	UnitID   string
	Quantity int
	// HoldDuration of zero means the configured default.
	HoldDuration   time.Duration
	IdempotencyKey string
}

// Reserve claims quantity units of a tier for a limited time. On rejection
// nothing is written.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (domain.Reservation, error) {
	if in.UnitID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	if !domain.ValidQuantity(in.Quantity) {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}
	hold, err := s.holdDuration(in.HoldDuration)
	if err != nil {
		return domain.Reservation{}, err
	}

	log := s.opts.log.WithFields(logrus.Fields{"unit_id": in.UnitID, "quantity": in.Quantity})

	if s.expiry != nil {
		if n, err := s.expiry.ExpireUnitHolds(ctx, in.UnitID); err != nil {
			log.WithError(err).Warn("lazy expiry failed")
		} else if n > 0 {
			log.WithField("expired", n).Debug("expired overdue holds before reserve")
		}
	}

	var result domain.Reservation
	err = retryTransient(ctx, s.opts.reserveAttempts, log, "reserve", func() error {
		var err error
		result, err = s.reserveOnce(ctx, in, hold)
		return err
	})
	if errors.Is(err, domain.ErrIdempotencyConflict) && in.IdempotencyKey != "" {
		// A concurrent request with the same key won the insert.
		result, err = s.replay(ctx, in)
	}
	if err != nil {
		if errors.Is(err, domain.ErrTransientContention) {
			log.WithError(err).Warn("reserve gave up after contention")
		}
		return domain.Reservation{}, err
	}

	invalidate(ctx, s.opts, in.UnitID)
	log.WithFields(logrus.Fields{
		"reservation_id": result.ID,
		"expires_at":     result.ExpiresAt,
	}).Info("reservation held")
	return result, nil
}

func (s *ReservationService) reserveOnce(ctx context.Context, in ReserveInput, hold time.Duration) (domain.Reservation, error) {
	now := s.clock.Now()
	var result domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if in.IdempotencyKey != "" {
			existing, err := s.repo.FindReservationByIdempotencyKey(txCtx, in.UnitID, in.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.Quantity != in.Quantity {
					return domain.ErrIdempotencyConflict
				}
				result = *existing
				return nil
			}
		}

		unit, err := s.repo.GetUnit(txCtx, in.UnitID)
		if err != nil {
			return err
		}
		event, err := s.repo.GetEvent(txCtx, unit.EventID)
		if err != nil {
			return err
		}
		if event.Status != domain.EventStatusActive {
			return domain.ErrEventNotActive
		}

		if _, err := s.ledger.TryReserve(txCtx, in.UnitID, in.Quantity); err != nil {
			return err
		}

		r := domain.Reservation{
			ID:             uuid.NewString(),
			UnitID:         in.UnitID,
			EventID:        unit.EventID,
			Quantity:       in.Quantity,
			Status:         domain.ReservationHeld,
			IdempotencyKey: in.IdempotencyKey,
			CreatedAt:      now,
			ExpiresAt:      now.Add(hold),
			UpdatedAt:      now,
		}
		if err := s.repo.CreateReservation(txCtx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func (s *ReservationService) replay(ctx context.Context, in ReserveInput) (domain.Reservation, error) {
	existing, err := s.repo.FindReservationByIdempotencyKey(ctx, in.UnitID, in.IdempotencyKey)
	if err != nil {
		return domain.Reservation{}, err
	}
	if existing == nil || existing.Quantity != in.Quantity {
		return domain.Reservation{}, domain.ErrIdempotencyConflict
	}
	return *existing, nil
}

func (s *ReservationService) holdDuration(requested time.Duration) (time.Duration, error) {
	switch {
	case requested < 0:
		return 0, domain.ErrInvalidHoldDuration
	case requested == 0:
		return s.opts.holdTTL, nil
	case requested > s.opts.maxHoldTTL:
		return s.opts.maxHoldTTL, nil
	}
	return requested, nil
}

// Cancel releases a HELD reservation. Terminal reservations are returned
// unchanged.
func (s *ReservationService) Cancel(ctx context.Context, reservationID string) (domain.Reservation, error) {
	if reservationID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result domain.Reservation
	var released bool

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		result = r
		if r.Status.Terminal() {
			return nil
		}

		released, err = releaseHold(txCtx, s.repo, s.ledger, s.opts.log, r, domain.ReservationCancelled, now)
		if err != nil {
			return err
		}
		if released {
			result.Status = domain.ReservationCancelled
			result.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	if released {
		invalidate(ctx, s.opts, result.UnitID)
		s.opts.log.WithFields(logrus.Fields{
			"reservation_id": result.ID,
			"unit_id":        result.UnitID,
			"quantity":       result.Quantity,
		}).Info("reservation cancelled")
	}
	return result, nil
}

func (s *ReservationService) Get(ctx context.Context, reservationID string) (domain.Reservation, error) {
	if reservationID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	return s.repo.GetReservation(ctx, reservationID)
}
