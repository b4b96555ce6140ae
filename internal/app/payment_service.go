package app

import (
	"context"
	"errors"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/sirupsen/logrus"
)

type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentAbandoned PaymentStatus = "abandoned"
)

// PaymentEvent is a payment processor callback, delivered by webhook or queue.
type PaymentEvent struct {
	ReservationID    string        `json:"reservation_id"`
	PaymentReference string        `json:"payment_reference"`
	Status           PaymentStatus `json:"status"`
	AmountCents      int64         `json:"amount_cents"`
	BuyerName        string        `json:"buyer_name"`
	BuyerEmail       string        `json:"buyer_email"`
}

type Confirmer interface {
	Confirm(ctx context.Context, in ConfirmInput) (ConfirmResult, error)
}

type Canceller interface {
	Cancel(ctx context.Context, reservationID string) (domain.Reservation, error)
}

// PaymentEventService routes payment outcomes to confirm or cancel. Duplicate
// deliveries are safe because both targets are idempotent.
type PaymentEventService struct {
	confirmer Confirmer
	canceller Canceller
	opts      options
}

func NewPaymentEventService(confirmer Confirmer, canceller Canceller, opts ...Option) *PaymentEventService {
	return &PaymentEventService{
		confirmer: confirmer,
		canceller: canceller,
		opts:      newOptions(opts),
	}
}

func (s *PaymentEventService) Handle(ctx context.Context, ev PaymentEvent) error {
	log := s.opts.log.WithFields(logrus.Fields{
		"reservation_id":    ev.ReservationID,
		"payment_reference": ev.PaymentReference,
		"status":            ev.Status,
	})

	switch ev.Status {
	case PaymentSucceeded:
		res, err := s.confirmer.Confirm(ctx, ConfirmInput{
			ReservationID:    ev.ReservationID,
			PaymentReference: ev.PaymentReference,
			Buyer:            domain.Buyer{Name: ev.BuyerName, Email: ev.BuyerEmail},
			AmountCents:      ev.AmountCents,
		})
		if err != nil {
			return err
		}
		if res.AlreadyConfirmed {
			log.Debug("duplicate payment event ignored")
		}
		return nil
	case PaymentFailed, PaymentAbandoned:
		_, err := s.canceller.Cancel(ctx, ev.ReservationID)
		return err
	default:
		return domain.ErrInvalidPaymentStatus
	}
}

// PaymentOutcomeFinal reports whether err from Handle means redelivering the
// same event can never succeed, either because it was already applied or
// because the reservation is gone.
func PaymentOutcomeFinal(err error) bool {
	for _, target := range []error{
		domain.ErrAlreadyConfirmed,
		domain.ErrReservationExpired,
		domain.ErrReservationCancelled,
		domain.ErrReservationNotFound,
		domain.ErrInvalidID,
		domain.ErrInvalidPaymentStatus,
		domain.ErrPaymentRefRequired,
		domain.ErrInvalidAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
