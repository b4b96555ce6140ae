package domain

import "errors"

// Inventory and reservation signals.
var (
	ErrUnitNotFound         = errors.New("sellable unit not found")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrTransientContention  = errors.New("transient contention, retry")
	ErrLedgerInvariant      = errors.New("ledger invariant violated")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidHoldDuration  = errors.New("invalid hold duration")
	ErrIdempotencyConflict  = errors.New("idempotency conflict")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrReservationExpired   = errors.New("reservation expired")
	ErrReservationCancelled = errors.New("reservation cancelled")
	ErrAlreadyConfirmed     = errors.New("reservation already confirmed")
	ErrPaymentRefRequired   = errors.New("payment reference required")
	ErrSaleNotFound         = errors.New("sale not found")
	ErrInvalidID            = errors.New("invalid id")
)

// Event and tier management.
var (
	ErrEventNotFound      = errors.New("event not found")
	ErrEventNameRequired  = errors.New("event name required")
	ErrOrganizerRequired  = errors.New("organizer id required")
	ErrInvalidEventStatus = errors.New("invalid event status transition")
	ErrEventNotActive     = errors.New("event is not active")
	ErrEventNotTerminal   = errors.New("event is not cancelled or completed")
	ErrUnitNameRequired   = errors.New("unit name required")
	ErrUnitAlreadyExists  = errors.New("unit already exists")
	ErrInvalidCapacity    = errors.New("invalid capacity")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrCapacityLocked     = errors.New("capacity cannot change once reservations exist")
	ErrUnitHasSales       = errors.New("unit has sales")
	ErrUnitHasHolds       = errors.New("unit has active holds")
)

// Credit allocation policy.
var (
	ErrFreeGrantAlreadyUsed = errors.New("free grant already used")
	ErrExceedsFreeLimit     = errors.New("quantity exceeds free grant limit")
	ErrNotFirstEvent        = errors.New("free grant only applies to the organizer's first event")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrInvalidAmount        = errors.New("invalid amount")
)

// Payment events.
var (
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
)
