package app

import (
	"context"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

// Transactor runs fn inside a single storage transaction. Nested calls reuse
// the transaction already carried by ctx.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InventoryLedger owns the per-unit reserved/sold counters. Every mutation is
// atomic per unit and rejects anything that would break
// reserved + sold <= capacity_total.
type InventoryLedger interface {
	GetAvailable(ctx context.Context, unitID string) (domain.Availability, error)
	TryReserve(ctx context.Context, unitID string, quantity int) (domain.SellableUnit, error)
	ReleaseReservation(ctx context.Context, unitID string, quantity int) (domain.LedgerRelease, error)
	ConfirmReservation(ctx context.Context, unitID string, quantity int) (domain.SellableUnit, error)
}

type ReservationRepository interface {
	Transactor
	GetUnit(ctx context.Context, unitID string) (domain.SellableUnit, error)
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	FindReservationByIdempotencyKey(ctx context.Context, unitID, key string) (*domain.Reservation, error)
	CreateReservation(ctx context.Context, r domain.Reservation) error
	GetReservation(ctx context.Context, id string) (domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	// TransitionReservation moves id from one status to another and reports
	// whether the row was still in the expected status.
	TransitionReservation(ctx context.Context, id string, from, to domain.ReservationStatus, at time.Time) (bool, error)
	// ListOverdueReservations returns HELD reservations with expires_at <= now.
	// An empty unitID lists across all units.
	ListOverdueReservations(ctx context.Context, unitID string, now time.Time, limit int) ([]domain.Reservation, error)
}

type SaleRepository interface {
	GetSaleByReservation(ctx context.Context, reservationID string) (*domain.SaleRecord, error)
	// CreateSale returns domain.ErrAlreadyConfirmed when a sale already exists
	// for the reservation.
	CreateSale(ctx context.Context, sale domain.SaleRecord) error
}

type CreditRepository interface {
	GetCreditBalance(ctx context.Context, organizerID string) (domain.CreditBalance, error)
	// GetCreditBalanceForUpdate locks the organizer's balance row, creating an
	// empty one first if needed.
	GetCreditBalanceForUpdate(ctx context.Context, organizerID string) (domain.CreditBalance, error)
	SaveCreditBalance(ctx context.Context, b domain.CreditBalance) error
	FindCreditBalanceByLinkedEvent(ctx context.Context, eventID string) (*domain.CreditBalance, error)
	ListTerminalEventsWithOutstandingFreeCredits(ctx context.Context, limit int) ([]string, error)
	FirstEventID(ctx context.Context, organizerID string) (string, error)
}

type AdminRepository interface {
	Transactor
	CreateEvent(ctx context.Context, event domain.Event) error
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	SetEventStatus(ctx context.Context, eventID string, status domain.EventStatus) error
	CreateUnit(ctx context.Context, unit domain.SellableUnit) error
	GetUnit(ctx context.Context, unitID string) (domain.SellableUnit, error)
	ListUnits(ctx context.Context, eventID string) ([]domain.SellableUnit, error)
	UpdateUnitCapacity(ctx context.Context, unitID string, capacity int) error
	DeleteUnit(ctx context.Context, unitID string) error
}

// AvailabilityCache is a short-lived read cache in front of the ledger. It is
// never consulted for reserve decisions.
type AvailabilityCache interface {
	Get(ctx context.Context, unitID string) (domain.Availability, bool, error)
	Set(ctx context.Context, a domain.Availability) error
	Invalidate(ctx context.Context, unitID string) error
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (domain.Availability, bool, error) {
	return domain.Availability{}, false, nil
}
func (nopCache) Set(context.Context, domain.Availability) error { return nil }
func (nopCache) Invalidate(context.Context, string) error       { return nil }
