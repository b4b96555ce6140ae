package app

import (
	"context"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/sirupsen/logrus"
)

type reservationTransitioner interface {
	TransitionReservation(ctx context.Context, id string, from, to domain.ReservationStatus, at time.Time) (bool, error)
}

// releaseHold moves a HELD reservation to a terminal status and returns its
// quantity to the ledger. It must run inside a transaction. It reports false
// when the reservation had already left HELD, in which case nothing changes.
func releaseHold(
	ctx context.Context,
	repo reservationTransitioner,
	ledger InventoryLedger,
	log logrus.FieldLogger,
	r domain.Reservation,
	to domain.ReservationStatus,
	now time.Time,
) (bool, error) {
	ok, err := repo.TransitionReservation(ctx, r.ID, domain.ReservationHeld, to, now)
	if err != nil || !ok {
		return false, err
	}

	rel, err := ledger.ReleaseReservation(ctx, r.UnitID, r.Quantity)
	if err != nil {
		return false, err
	}
	if rel.Clamped {
		log.WithFields(logrus.Fields{
			"reservation_id": r.ID,
			"unit_id":        r.UnitID,
			"requested":      rel.Requested,
			"released":       rel.Released,
		}).Warn("ledger release clamped at zero")
	}
	return true, nil
}

func invalidate(ctx context.Context, o options, unitIDs ...string) {
	for _, id := range unitIDs {
		if err := o.cache.Invalidate(ctx, id); err != nil {
			o.log.WithError(err).WithField("unit_id", id).Warn("availability cache invalidate failed")
		}
	}
}
