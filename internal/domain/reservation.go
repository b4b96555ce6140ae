package domain

import "time"

type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "held"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationExpired   ReservationStatus = "expired"
	ReservationCancelled ReservationStatus = "cancelled"
)

func (s ReservationStatus) Terminal() bool {
	return s != ReservationHeld
}

// Reservation is a time-limited claim on capacity of one unit.
type Reservation struct {
	ID             string
	UnitID         string
	EventID        string
	Quantity       int
	Status         ReservationStatus
	IdempotencyKey string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	UpdatedAt      time.Time
}

// Overdue reports whether a held reservation has passed its expiry.
func (r Reservation) Overdue(now time.Time) bool {
	return r.Status == ReservationHeld && !r.ExpiresAt.After(now)
}
