package app

import (
	"context"
	"errors"

	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ConfirmationRepository interface {
	ReservationRepository
	SaleRepository
}

// ConfirmationService turns held reservations into sales once payment clears.
type ConfirmationService struct {
	repo   ConfirmationRepository
	ledger InventoryLedger
	clock  clock.Clock
	opts   options
}

func NewConfirmationService(repo ConfirmationRepository, ledger InventoryLedger, clk clock.Clock, opts ...Option) *ConfirmationService {
	return &ConfirmationService{
		repo:   repo,
		ledger: ledger,
		clock:  clk,
		opts:   newOptions(opts),
	}
}

type ConfirmInput struct {
	ReservationID    string
	PaymentReference string
	Buyer            domain.Buyer
	// AmountCents of zero charges the unit price times quantity.
	AmountCents int64
}

type ConfirmResult struct {
	Sale domain.SaleRecord
	// AlreadyConfirmed is set when the call replayed an earlier confirmation
	// with the same payment reference.
	AlreadyConfirmed bool
}

// Confirm converts a HELD reservation into a sale. A repeated call with the
// same payment reference returns the original sale; any other call on a
// confirmed reservation fails with ErrAlreadyConfirmed.
func (s *ConfirmationService) Confirm(ctx context.Context, in ConfirmInput) (ConfirmResult, error) {
	if in.ReservationID == "" {
		return ConfirmResult{}, domain.ErrInvalidID
	}
	if in.PaymentReference == "" {
		return ConfirmResult{}, domain.ErrPaymentRefRequired
	}
	if in.AmountCents < 0 {
		return ConfirmResult{}, domain.ErrInvalidAmount
	}

	log := s.opts.log.WithField("reservation_id", in.ReservationID)
	now := s.clock.Now()
	var result ConfirmResult
	var lapsed bool
	var unitID string

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		unitID = r.UnitID

		existing, err := s.repo.GetSaleByReservation(txCtx, r.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.PaymentReference == in.PaymentReference {
				result = ConfirmResult{Sale: *existing, AlreadyConfirmed: true}
				return nil
			}
			return domain.ErrAlreadyConfirmed
		}

		switch r.Status {
		case domain.ReservationConfirmed:
			return domain.ErrAlreadyConfirmed
		case domain.ReservationCancelled:
			return domain.ErrReservationCancelled
		case domain.ReservationExpired:
			return domain.ErrReservationExpired
		}

		if r.Overdue(now) {
			// Reclaim here and commit, the caller still gets Expired.
			lapsed, err = releaseHold(txCtx, s.repo, s.ledger, s.opts.log, r, domain.ReservationExpired, now)
			if err != nil {
				return err
			}
			if !lapsed {
				return domain.ErrReservationExpired
			}
			return nil
		}

		ok, err := s.repo.TransitionReservation(txCtx, r.ID, domain.ReservationHeld, domain.ReservationConfirmed, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyConfirmed
		}

		unit, err := s.ledger.ConfirmReservation(txCtx, r.UnitID, r.Quantity)
		if err != nil {
			return err
		}

		amount := in.AmountCents
		if amount == 0 {
			amount = unit.PriceCents * int64(r.Quantity)
		}
		sale := domain.SaleRecord{
			ID:               uuid.NewString(),
			ReservationID:    r.ID,
			UnitID:           r.UnitID,
			Quantity:         r.Quantity,
			Buyer:            in.Buyer,
			AmountCents:      amount,
			PaymentReference: in.PaymentReference,
			ConfirmedAt:      now,
		}
		if err := s.repo.CreateSale(txCtx, sale); err != nil {
			return err
		}
		result = ConfirmResult{Sale: sale}
		return nil
	})
	if errors.Is(err, domain.ErrAlreadyConfirmed) {
		// A concurrent confirm may have committed first with the same reference.
		if replay, ok := s.replay(ctx, in); ok {
			return replay, nil
		}
	}
	if err != nil {
		return ConfirmResult{}, err
	}

	if lapsed {
		invalidate(ctx, s.opts, unitID)
		log.Info("reservation expired before confirmation")
		return ConfirmResult{}, domain.ErrReservationExpired
	}

	if !result.AlreadyConfirmed {
		invalidate(ctx, s.opts, unitID)
		log.WithFields(logrus.Fields{
			"sale_id":  result.Sale.ID,
			"unit_id":  result.Sale.UnitID,
			"quantity": result.Sale.Quantity,
		}).Info("reservation confirmed")
	}
	return result, nil
}

func (s *ConfirmationService) replay(ctx context.Context, in ConfirmInput) (ConfirmResult, bool) {
	existing, err := s.repo.GetSaleByReservation(ctx, in.ReservationID)
	if err != nil || existing == nil || existing.PaymentReference != in.PaymentReference {
		return ConfirmResult{}, false
	}
	return ConfirmResult{Sale: *existing, AlreadyConfirmed: true}, true
}

// GetSale returns the sale for a reservation. Check-in uses it to validate a
// ticket.
func (s *ConfirmationService) GetSale(ctx context.Context, reservationID string) (domain.SaleRecord, error) {
	if reservationID == "" {
		return domain.SaleRecord{}, domain.ErrInvalidID
	}
	sale, err := s.repo.GetSaleByReservation(ctx, reservationID)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	if sale == nil {
		return domain.SaleRecord{}, domain.ErrSaleNotFound
	}
	return *sale, nil
}
