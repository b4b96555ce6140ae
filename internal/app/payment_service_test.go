package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockConfirmer struct{ mock.Mock }

func (m *mockConfirmer) Confirm(ctx context.Context, in ConfirmInput) (ConfirmResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(ConfirmResult), args.Error(1)
}

type mockCanceller struct{ mock.Mock }

func (m *mockCanceller) Cancel(ctx context.Context, id string) (domain.Reservation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Reservation), args.Error(1)
}

func TestPaymentEventService_Handle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("succeeded confirms", func(t *testing.T) {
		confirmer, canceller := &mockConfirmer{}, &mockCanceller{}
		confirmer.On("Confirm", ctx, ConfirmInput{
			ReservationID:    "res-1",
			PaymentReference: "pay-1",
			Buyer:            domain.Buyer{Name: "Ada", Email: "ada@example.com"},
			AmountCents:      5000,
		}).Return(ConfirmResult{}, nil).Once()

		svc := NewPaymentEventService(confirmer, canceller)
		err := svc.Handle(ctx, PaymentEvent{
			ReservationID:    "res-1",
			PaymentReference: "pay-1",
			Status:           PaymentSucceeded,
			AmountCents:      5000,
			BuyerName:        "Ada",
			BuyerEmail:       "ada@example.com",
		})
		assert.NoError(t, err)
		confirmer.AssertExpectations(t)
		canceller.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
	})

	t.Run("failed and abandoned cancel", func(t *testing.T) {
		for _, status := range []PaymentStatus{PaymentFailed, PaymentAbandoned} {
			confirmer, canceller := &mockConfirmer{}, &mockCanceller{}
			canceller.On("Cancel", ctx, "res-1").Return(domain.Reservation{}, nil).Once()

			svc := NewPaymentEventService(confirmer, canceller)
			assert.NoError(t, svc.Handle(ctx, PaymentEvent{ReservationID: "res-1", Status: status}))
			canceller.AssertExpectations(t)
		}
	})

	t.Run("confirm errors propagate", func(t *testing.T) {
		confirmer, canceller := &mockConfirmer{}, &mockCanceller{}
		confirmer.On("Confirm", ctx, mock.Anything).Return(ConfirmResult{}, domain.ErrReservationExpired)

		svc := NewPaymentEventService(confirmer, canceller)
		err := svc.Handle(ctx, PaymentEvent{ReservationID: "res-1", PaymentReference: "pay-1", Status: PaymentSucceeded})
		assert.ErrorIs(t, err, domain.ErrReservationExpired)
	})

	t.Run("unknown status", func(t *testing.T) {
		svc := NewPaymentEventService(&mockConfirmer{}, &mockCanceller{})
		err := svc.Handle(ctx, PaymentEvent{ReservationID: "res-1", Status: "refunded"})
		assert.ErrorIs(t, err, domain.ErrInvalidPaymentStatus)
	})
}

func TestPaymentOutcomeFinal(t *testing.T) {
	t.Parallel()

	assert.True(t, PaymentOutcomeFinal(domain.ErrAlreadyConfirmed))
	assert.True(t, PaymentOutcomeFinal(fmt.Errorf("confirm: %w", domain.ErrReservationExpired)))
	assert.True(t, PaymentOutcomeFinal(domain.ErrReservationNotFound))
	assert.False(t, PaymentOutcomeFinal(domain.ErrTransientContention))
	assert.False(t, PaymentOutcomeFinal(domain.ErrLedgerInvariant))
	assert.False(t, PaymentOutcomeFinal(errors.New("connection reset")))
}
