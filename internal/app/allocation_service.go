package app

import (
	"context"
	"errors"

	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type AllocationRepository interface {
	ReservationRepository
	SaleRepository
	CreditRepository
}

// AllocationService applies the organizer credit policy: the one-time free
// grant, purchased credits and complimentary tickets paid for with credits.
type AllocationService struct {
	repo   AllocationRepository
	ledger InventoryLedger
	clock  clock.Clock
	opts   options
}

func NewAllocationService(repo AllocationRepository, ledger InventoryLedger, clk clock.Clock, opts ...Option) *AllocationService {
	return &AllocationService{
		repo:   repo,
		ledger: ledger,
		clock:  clk,
		opts:   newOptions(opts),
	}
}

// GrantFirstFreeAllocation credits an organizer with free tickets for their
// first event. It can succeed once per organizer.
func (s *AllocationService) GrantFirstFreeAllocation(ctx context.Context, organizerID, eventID string, quantity int) (domain.CreditBalance, error) {
	if !domain.ValidQuantity(quantity) {
		return domain.CreditBalance{}, domain.ErrInvalidQuantity
	}
	if organizerID == "" {
		return domain.CreditBalance{}, domain.ErrOrganizerRequired
	}
	if eventID == "" {
		return domain.CreditBalance{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result domain.CreditBalance

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.repo.GetEvent(txCtx, eventID)
		if err != nil {
			return err
		}
		if event.OrganizerID != organizerID {
			return domain.ErrEventNotFound
		}

		balance, err := s.repo.GetCreditBalanceForUpdate(txCtx, organizerID)
		if err != nil {
			return err
		}
		if err := balance.CheckFreeGrant(quantity, s.opts.freeGrantLimit); err != nil {
			return err
		}

		first, err := s.repo.FirstEventID(txCtx, organizerID)
		if err != nil {
			return err
		}
		if first != eventID {
			return domain.ErrNotFirstEvent
		}
		if event.Status != domain.EventStatusActive {
			return domain.ErrEventNotActive
		}

		if err := balance.ApplyFreeGrant(eventID, quantity, s.opts.freeGrantLimit, now); err != nil {
			return err
		}
		if err := s.repo.SaveCreditBalance(txCtx, balance); err != nil {
			return err
		}
		result = balance
		return nil
	})
	if err != nil {
		return domain.CreditBalance{}, err
	}

	s.opts.log.WithFields(logrus.Fields{
		"organizer_id": organizerID,
		"event_id":     eventID,
		"quantity":     quantity,
	}).Info("free allocation granted")
	return result, nil
}

// AddCredits records purchased credits. Payment is settled elsewhere.
func (s *AllocationService) AddCredits(ctx context.Context, organizerID string, amount int) (domain.CreditBalance, error) {
	if organizerID == "" {
		return domain.CreditBalance{}, domain.ErrOrganizerRequired
	}
	if amount <= 0 || amount > domain.MaxQuantity {
		return domain.CreditBalance{}, domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	var result domain.CreditBalance
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		balance, err := s.repo.GetCreditBalanceForUpdate(txCtx, organizerID)
		if err != nil {
			return err
		}
		if err := balance.AddPurchased(amount, now); err != nil {
			return err
		}
		if err := s.repo.SaveCreditBalance(txCtx, balance); err != nil {
			return err
		}
		result = balance
		return nil
	})
	if err != nil {
		return domain.CreditBalance{}, err
	}
	return result, nil
}

func (s *AllocationService) Balance(ctx context.Context, organizerID string) (domain.CreditBalance, error) {
	if organizerID == "" {
		return domain.CreditBalance{}, domain.ErrOrganizerRequired
	}
	return s.repo.GetCreditBalance(ctx, organizerID)
}

type ComplimentaryInput struct {
	OrganizerID string
	UnitID      string
	Quantity    int
	Buyer       domain.Buyer
}

// IssueComplimentary spends organizer credits on tickets. Capacity goes
// through the same ledger calls as a paid reservation and confirmation.
func (s *AllocationService) IssueComplimentary(ctx context.Context, in ComplimentaryInput) (domain.SaleRecord, error) {
	if in.OrganizerID == "" {
		return domain.SaleRecord{}, domain.ErrOrganizerRequired
	}
	if in.UnitID == "" {
		return domain.SaleRecord{}, domain.ErrInvalidID
	}
	if !domain.ValidQuantity(in.Quantity) {
		return domain.SaleRecord{}, domain.ErrInvalidQuantity
	}

	log := s.opts.log.WithFields(logrus.Fields{
		"organizer_id": in.OrganizerID,
		"unit_id":      in.UnitID,
		"quantity":     in.Quantity,
	})

	var sale domain.SaleRecord
	err := retryTransient(ctx, s.opts.reserveAttempts, log, "complimentary", func() error {
		var err error
		sale, err = s.issueOnce(ctx, in)
		return err
	})
	if err != nil {
		return domain.SaleRecord{}, err
	}

	invalidate(ctx, s.opts, in.UnitID)
	log.WithFields(logrus.Fields{
		"reservation_id": sale.ReservationID,
		"sale_id":        sale.ID,
	}).Info("complimentary tickets issued")
	return sale, nil
}

func (s *AllocationService) issueOnce(ctx context.Context, in ComplimentaryInput) (domain.SaleRecord, error) {
	now := s.clock.Now()
	var result domain.SaleRecord

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		unit, err := s.repo.GetUnit(txCtx, in.UnitID)
		if err != nil {
			return err
		}
		event, err := s.repo.GetEvent(txCtx, unit.EventID)
		if err != nil {
			return err
		}
		if event.OrganizerID != in.OrganizerID {
			return domain.ErrUnitNotFound
		}
		if event.Status != domain.EventStatusActive {
			return domain.ErrEventNotActive
		}

		// Balance row before unit row.
		balance, err := s.repo.GetCreditBalanceForUpdate(txCtx, in.OrganizerID)
		if err != nil {
			return err
		}
		if err := balance.Consume(event.ID, in.Quantity, now); err != nil {
			return err
		}

		if _, err := s.ledger.TryReserve(txCtx, in.UnitID, in.Quantity); err != nil {
			return err
		}
		r := domain.Reservation{
			ID:        uuid.NewString(),
			UnitID:    in.UnitID,
			EventID:   event.ID,
			Quantity:  in.Quantity,
			Status:    domain.ReservationHeld,
			CreatedAt: now,
			ExpiresAt: now.Add(s.opts.holdTTL),
			UpdatedAt: now,
		}
		if err := s.repo.CreateReservation(txCtx, r); err != nil {
			return err
		}
		if _, err := s.repo.TransitionReservation(txCtx, r.ID, domain.ReservationHeld, domain.ReservationConfirmed, now); err != nil {
			return err
		}
		if _, err := s.ledger.ConfirmReservation(txCtx, in.UnitID, in.Quantity); err != nil {
			return err
		}

		sale := domain.SaleRecord{
			ID:               uuid.NewString(),
			ReservationID:    r.ID,
			UnitID:           in.UnitID,
			Quantity:         in.Quantity,
			Buyer:            in.Buyer,
			PaymentReference: "credit:" + r.ID,
			ConfirmedAt:      now,
		}
		if err := s.repo.CreateSale(txCtx, sale); err != nil {
			return err
		}
		if err := s.repo.SaveCreditBalance(txCtx, balance); err != nil {
			return err
		}
		result = sale
		return nil
	})
	return result, err
}

// ExpireUnusedFreeCredits removes the unspent part of the free grant linked
// to a cancelled or completed event. Running it again changes nothing.
func (s *AllocationService) ExpireUnusedFreeCredits(ctx context.Context, eventID string) (int, error) {
	if eventID == "" {
		return 0, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var expired int
	var organizerID string

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.repo.GetEvent(txCtx, eventID)
		if err != nil {
			return err
		}
		if !event.Status.Terminal() {
			return domain.ErrEventNotTerminal
		}

		balance, err := s.repo.FindCreditBalanceByLinkedEvent(txCtx, eventID)
		if err != nil || balance == nil {
			return err
		}
		if balance.FreeExpiredAt != nil {
			return nil
		}
		organizerID = balance.OrganizerID
		expired = balance.ExpireFree(now)
		return s.repo.SaveCreditBalance(txCtx, *balance)
	})
	if err != nil {
		return 0, err
	}

	if organizerID != "" {
		s.opts.log.WithFields(logrus.Fields{
			"organizer_id": organizerID,
			"event_id":     eventID,
			"expired":      expired,
		}).Info("unused free credits expired")
	}
	return expired, nil
}

// ExpireTerminalEventCredits polls for terminal events whose free credits
// were never expired and expires them.
func (s *AllocationService) ExpireTerminalEventCredits(ctx context.Context) (int, error) {
	eventIDs, err := s.repo.ListTerminalEventsWithOutstandingFreeCredits(ctx, s.opts.sweepBatchSize)
	if err != nil {
		return 0, err
	}

	var total int
	var errs []error
	for _, id := range eventIDs {
		n, err := s.ExpireUnusedFreeCredits(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}
